package domain

import "errors"

// Room lifecycle errors
var (
	ErrRoomNotFound  = errors.New("room-not-found")
	ErrRoomFull      = errors.New("room-full")
	ErrWrongPasscode = errors.New("wrong-passcode")
	ErrRaceLost      = errors.New("race-lost")
	ErrServerBusy    = errors.New("server-busy")
)

// ErrInvalidAction is returned by the state machine when an action is issued by the wrong
// role or in the wrong state. Callers treat it as a no-op.
var ErrInvalidAction = errors.New("invalid-action")

var (
	UnexpectedStoreError                  = errors.New("unexpected-store-error")
	UnexpectedPasswordHashComparisonError = errors.New("unexpected-password-hash-comparison-error")
	UnexpectedPasswordHashError           = errors.New("unexpected-password-hash-error")
)

var (
	UnexpectedTokenGenerationError   = errors.New("unexpected-token-generation-error")
	UnexpectedTokenVerificationError = errors.New("unexpected-token-verification-error")
	ErrInvalidSigningAlg             = errors.New("invalid-signing-alg")
	ErrExpiredToken                  = errors.New("expired-token")
	ErrInvalidTokenSignature         = errors.New("invalid-token-signature")
	ErrCorruptedToken                = errors.New("corrupted-token")
)
