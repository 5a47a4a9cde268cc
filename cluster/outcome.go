package cluster

import (
	"errors"
	"fmt"
	"net/http"

	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// ErrOutcome is wrapped by Outcome.Err when a call returned without error but
// its response did not confirm the expected result.
var ErrOutcome = errors.New("unexpected provider response")

// Outcome is the checked result of one remote call: Ok, or Failed with a reason.
type Outcome struct {
	failed bool
	reason string
}

// Ok returns a successful outcome.
func Ok() Outcome {
	return Outcome{}
}

// Failed returns an unsuccessful outcome with a formatted reason.
func Failed(format string, args ...any) Outcome {
	return Outcome{failed: true, reason: fmt.Sprintf(format, args...)}
}

// IsOk reports whether the call was confirmed.
func (o Outcome) IsOk() bool {
	return !o.failed
}

// Reason is empty for Ok outcomes.
func (o Outcome) Reason() string {
	return o.reason
}

// Err converts a Failed outcome to an error wrapping ErrOutcome.
func (o Outcome) Err() error {
	if !o.failed {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrOutcome, o.reason)
}

func (o Outcome) String() string {
	if !o.failed {
		return "ok"
	}
	return "failed: " + o.reason
}

// statusOutcome checks the HTTP status recorded in the response metadata.
// Clients that do not record the raw response (test fakes) are trusted, since
// the SDK turns every non-2xx response into an error before this point.
func statusOutcome(op string, md middleware.Metadata) Outcome {
	resp, ok := awsmiddleware.GetRawResponse(md).(*smithyhttp.Response)
	if !ok || resp == nil || resp.Response == nil {
		return Ok()
	}
	if resp.StatusCode != http.StatusOK {
		return Failed("%s returned HTTP status %d", op, resp.StatusCode)
	}
	return Ok()
}

// stateOutcome checks that a resource reached the expected transitional state.
func stateOutcome(op, want, got string) Outcome {
	if got != want {
		return Failed("%s left cluster in state %q, expected %q", op, got, want)
	}
	return Ok()
}
