package discovery

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidConfig     = errors.New("invalid discovery configuration")
	ErrInvalidRoot       = errors.New("root directory missing or unreadable")
	ErrNotFound          = errors.New("no candidate found")
	ErrLoadFailed        = errors.New("load failed")
	ErrEntryPointMissing = errors.New("entry point missing")
	ErrNonConforming     = errors.New("entry point not callable as a predictor")
)

// Kind names a candidate partition.
type Kind string

const (
	KindModule Kind = "implementation module"
	KindModel  Kind = "model weights"
	KindData   Kind = "reference data"
)

// DiscoveryError reports why a discovery run ended in FAILED.
type DiscoveryError struct {
	Stage State
	Kind  Kind
	Root  string
	Path  string
	Err   error
}

func (e *DiscoveryError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "discovery failed while %s", strings.ToLower(e.Stage.String()))
	if e.Kind != "" {
		fmt.Fprintf(&b, " %s", e.Kind)
	}
	switch {
	case e.Path != "":
		fmt.Fprintf(&b, " %s", e.Path)
	case e.Root != "":
		fmt.Fprintf(&b, " under %s", e.Root)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *DiscoveryError) Unwrap() error { return e.Err }
