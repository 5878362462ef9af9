package middleware

import (
	"encoding/json"
	"net/http"

	insurance "github.com/x402-foundation/x402-insurance"
)

// Handler wraps next with the challenge cycle using only net/http, for
// resource servers not built on gin.
func Handler(cfg Config, next http.Handler) (http.Handler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		proof := r.Header.Get(insurance.HeaderPaymentProof)
		commitment := r.Header.Get(insurance.HeaderRequestCommitment)

		if admitProof(r.Context(), &cfg, proof, commitment) {
			next.ServeHTTP(w, r)
			return
		}

		challenge, err := NewChallenge(&cfg)
		if err != nil {
			http.Error(w, "failed to issue payment challenge", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		json.NewEncoder(w).Encode(challenge)
	}), nil
}
