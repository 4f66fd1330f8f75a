// Package flock guards files shared between zkdrop processes.
//
// A serve process and a prove invocation may start at the same time against
// the same home directory. Both would create the prover key on first use, so
// key generation holds an exclusive lock on a sibling ".lock" file:
//
//	release, err := flock.Acquire(ctx, keyPath+".lock", 50*time.Millisecond)
//	if err != nil {
//	    return err
//	}
//	defer release()
package flock
