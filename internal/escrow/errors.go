package escrow

import (
	"errors"
	"fmt"
	"strings"
)

// Rejection taxonomy shared by engine mode and chain mode. Every
// precondition violation aborts the whole operation with one of these
// sentinels and no partial state change; callers branch with errors.Is.
var (
	ErrInvalidAmount       = errors.New("amount must be greater than 0")
	ErrDuplicateClaim      = errors.New("claim already exists")
	ErrClaimNotFound       = errors.New("claim does not exist")
	ErrNotRecipient        = errors.New("only intended recipient can claim")
	ErrAlreadyClaimed      = errors.New("tokens already claimed")
	ErrTokenTransferFailed = errors.New("token transfer failed")
	ErrNotOwner            = errors.New("caller is not the owner")
)

// revertReasons maps the escrow contract's revert strings onto the local
// sentinels so a chain-mode failure is indistinguishable from an engine-mode
// one at the API surface.
var revertReasons = []struct {
	substr string
	err    error
}{
	{"Claim already exists", ErrDuplicateClaim},
	{"Amount must be greater than 0", ErrInvalidAmount},
	{"Claim does not exist", ErrClaimNotFound},
	{"Only intended recipient can claim", ErrNotRecipient},
	{"Tokens already claimed", ErrAlreadyClaimed},
	{"Token transfer failed", ErrTokenTransferFailed},
	{"caller is not the owner", ErrNotOwner},
}

func mapRevert(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	for _, r := range revertReasons {
		if strings.Contains(msg, r.substr) {
			return fmt.Errorf("%w: %s", r.err, "reverted on-chain")
		}
	}
	return err
}

// ReasonCode returns the machine-readable code the API reports for an error
// from the taxonomy, or "INTERNAL" for anything else.
func ReasonCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidAmount):
		return "INVALID_AMOUNT"
	case errors.Is(err, ErrDuplicateClaim):
		return "DUPLICATE_CLAIM"
	case errors.Is(err, ErrClaimNotFound):
		return "CLAIM_NOT_FOUND"
	case errors.Is(err, ErrNotRecipient):
		return "NOT_RECIPIENT"
	case errors.Is(err, ErrAlreadyClaimed):
		return "ALREADY_CLAIMED"
	case errors.Is(err, ErrTokenTransferFailed):
		return "TOKEN_TRANSFER_FAILED"
	case errors.Is(err, ErrNotOwner):
		return "NOT_OWNER"
	default:
		return "INTERNAL"
	}
}
