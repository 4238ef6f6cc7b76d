package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Required("sessionId"), http.StatusBadRequest},
		{NotFound("product not found"), http.StatusNotFound},
		{AlreadyProcessed("confirmed"), http.StatusBadRequest},
		{Conflict(MsgCartEmpty), http.StatusBadRequest},
		{Gone(MsgCodeExpired), http.StatusGone},
		{Unauthenticated(MsgAuthRequired), http.StatusUnauthorized},
		{Forbidden(MsgInsufficientRole), http.StatusForbidden},
		{TooManyRequests(), http.StatusTooManyRequests},
		{Store("insert order", errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("confirm: %w", AlreadyProcessed("confirmed"))

	assert.True(t, Is(err, KindConflict))
	assert.Equal(t, "already confirmed", PublicMessage(err))
}

func TestStoreErrorsAreNotLeaked(t *testing.T) {
	err := Store("insert order", errors.New(`pq: relation "orders" does not exist`))

	assert.Equal(t, MsgInternal, PublicMessage(err))
	assert.Contains(t, err.Error(), "relation")
}

func TestRequiredNamesField(t *testing.T) {
	assert.Equal(t, "cartId is required", Required("cartId").Error())
}
