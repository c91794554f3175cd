package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	// Constantes pour la génération aléatoire sécurisée
	randomPrecision     = 1000000
	randomPrecisionF64  = 1000000.0
	fallbackRandomValue = 0.5
)

// RandomSource source d'aléa injectée dans le moteur (départage, capture, tirage d'espèce)
type RandomSource interface {
	// Float64 retourne une valeur dans [0.0, 1.0)
	Float64() float64
	// Intn retourne un entier dans [0, n)
	Intn(n int) int
}

// SecureRandom implémente RandomSource avec crypto/rand
type SecureRandom struct{}

// NewSecureRandom crée la source d'aléa par défaut
func NewSecureRandom() RandomSource {
	return SecureRandom{}
}

// Float64 implémente RandomSource
func (SecureRandom) Float64() float64 {
	return SecureRandFloat64()
}

// Intn implémente RandomSource
func (SecureRandom) Intn(n int) int {
	return SecureRandIntn(n)
}

// SecureRandFloat64 génère un nombre aléatoire sécurisé entre 0.0 et 1.0
func SecureRandFloat64() float64 {
	maxVal := big.NewInt(randomPrecision)
	n, err := rand.Int(rand.Reader, maxVal)
	if err != nil {
		// Fallback en cas d'erreur (ne devrait pas arriver)
		return fallbackRandomValue
	}
	return float64(n.Int64()) / randomPrecisionF64
}

// SecureRandIntn génère un entier aléatoire sécurisé entre 0 et n-1
func SecureRandIntn(n int) int {
	if n <= 0 {
		return 0
	}
	maxVal := big.NewInt(int64(n))
	result, err := rand.Int(rand.Reader, maxVal)
	if err != nil {
		return 0
	}
	return int(result.Int64())
}
