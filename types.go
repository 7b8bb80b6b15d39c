package embedload

import (
	"github.com/jward/embedload/internal/loadpath"
	"github.com/jward/embedload/internal/resolver"
)

// Public type aliases for the resolver types used in the Engine API.

type Request = resolver.Request
type Result = resolver.Result
type Kind = resolver.Kind
type LoadPathEntry = loadpath.Entry

// Resolution outcomes.
const (
	NotFound          = resolver.NotFound
	AlreadySatisfied  = resolver.AlreadySatisfied
	ArchiveContent    = resolver.ArchiveContent
	NativeHookInvoked = resolver.NativeHookInvoked
	DelegatedToHost   = resolver.DelegatedToHost
)

// ErrNotFound is returned when no stage of the chain can load a module.
var ErrNotFound = resolver.ErrNotFound
