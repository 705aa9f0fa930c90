// +build !invariants

package internal

// AssertInvariants is false in ordinary release builds; the HMM
// engine then skips its invariant check.
const AssertInvariants = false

// InvariantsMessage is empty when invariant checking is compiled out.
const InvariantsMessage = ""
