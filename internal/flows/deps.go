package flows

// Deps groups flow dependency sets. The Engine builds this once at Build time
// and delegates operations to the matching flow.
type Deps struct {
	Verify  VerifyDeps
	Session SessionDeps
	Rotate  RotateDeps
	Revoke  RevokeDeps
}
