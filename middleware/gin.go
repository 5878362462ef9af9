package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	insurance "github.com/x402-foundation/x402-insurance"
)

// InsuranceMiddleware returns a gin middleware that challenges
// unproven requests with 402 and admits requests whose claim is live.
func InsuranceMiddleware(cfg Config) (gin.HandlerFunc, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return func(c *gin.Context) {
		proof := c.GetHeader(insurance.HeaderPaymentProof)
		commitment := c.GetHeader(insurance.HeaderRequestCommitment)

		if admitProof(c.Request.Context(), &cfg, proof, commitment) {
			c.Next()
			return
		}

		challenge, err := NewChallenge(&cfg)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "failed to issue payment challenge",
			})
			return
		}
		c.AbortWithStatusJSON(http.StatusPaymentRequired, challenge)
	}, nil
}
