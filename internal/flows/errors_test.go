package flows

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AnshRaj112/chatooz-backend/internal/services"
)

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", &Error{Kind: KindDirectory, Message: "x"})
	assert.Equal(t, KindDirectory, KindOf(wrapped))
	assert.Equal(t, KindValidation, KindOf(ValidationErrors{validation("email", "bad")}))
	assert.Equal(t, KindOther, KindOf(errors.New("plain")))
}

func TestTransportFailureWithoutCode(t *testing.T) {
	fe := transportFailure("Chat connection failed", errors.New("dial tcp"))
	assert.Equal(t, services.CodeServerError, fe.Code)
	assert.Equal(t, "Chat connection failed: dial tcp (code 1099)", fe.Message)
}

func TestValidationErrorsMessage(t *testing.T) {
	v := ValidationErrors{validation("email", "a"), validation("password", "b")}
	assert.EqualError(t, v, "a; b")
}
