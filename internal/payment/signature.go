package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks a provider callback signature: hex(HMAC-SHA256(secret, orderID|paymentID)).
func VerifySignature(secret, orderID, paymentID, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(sign(secret, orderID, paymentID), expected)
}

func sign(secret, orderID, paymentID string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return mac.Sum(nil)
}

// Sign returns the hex signature a provider would send for the pair.
func Sign(secret, orderID, paymentID string) string {
	return hex.EncodeToString(sign(secret, orderID, paymentID))
}
