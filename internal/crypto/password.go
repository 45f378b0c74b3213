package crypto

import "golang.org/x/crypto/bcrypt"

// HashPassword returns a bcrypt hash of the plaintext. The salt is generated
// per call and embedded in the hash, so hashing the same password twice
// yields different stored values.
func HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword returns nil when the plaintext matches the stored hash.
func CheckPassword(hash, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
}
