package zkvm

import "context"

// Prover is the proving collaborator: it executes an image on an input and
// returns a receipt. Implementations may block for seconds to minutes.
type Prover interface {
	Prove(ctx context.Context, image, input []byte) (*Receipt, error)
}

// Compressor turns a verified receipt into its succinct form.
type Compressor interface {
	Compress(ctx context.Context, r *Receipt) (*Receipt, error)
}
