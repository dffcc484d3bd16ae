package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

// DomainErrorsSuite covers the primitives every service uses to report
// privacy-request failures: code matching and wrapping.
type DomainErrorsSuite struct {
	suite.Suite
}

func TestDomainErrorsSuite(t *testing.T) {
	suite.Run(t, new(DomainErrorsSuite))
}

func (s *DomainErrorsSuite) TestErrorMessage() {
	s.Run("returns message when present", func() {
		err := &Error{Code: CodeUnknownCategory, Message: "unknown category: shoe_size"}
		s.Equal("unknown category: shoe_size", err.Error())
	})

	s.Run("falls back to code", func() {
		err := &Error{Code: CodeInvalidTransition}
		s.Equal("invalid_transition", err.Error())
	})
}

func (s *DomainErrorsSuite) TestIsMatchesByCode() {
	err1 := New(CodeIdentityUnverified, "verification stale")
	err2 := New(CodeIdentityUnverified, "identity not verified")
	s.True(errors.Is(err1, err2))
	s.False(errors.Is(err1, New(CodeNotFound, "")))
	s.False(errors.Is(err1, errors.New("identity_unverified")))
}

func (s *DomainErrorsSuite) TestWrap() {
	s.Run("preserves original domain code", func() {
		original := New(CodeNotFound, "request not found")
		wrapped := Wrap(original, CodeInternal, "failed to load request")
		s.True(HasCode(wrapped, CodeNotFound))
		s.Equal("failed to load request", wrapped.Error())
	})

	s.Run("uses provided code for foreign errors", func() {
		root := errors.New("connection reset")
		wrapped := Wrap(root, CodeInternal, "failed to persist request")
		s.True(HasCode(wrapped, CodeInternal))
		s.ErrorIs(wrapped, root)
	})
}

func (s *DomainErrorsSuite) TestHasCode() {
	s.False(HasCode(nil, CodeNotFound))
	s.False(HasCode(errors.New("plain"), CodeNotFound))
	s.True(HasCode(fmt.Errorf("outer: %w", New(CodeExpired, "handle expired")), CodeExpired))
}
