package control

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

const (
	dareMaxIterations = 100
	dareTolerance     = 1e-10
)

// Discretize returns the zero-order hold discretization of the continuous system (a, b) over dt.
func Discretize(a, b mat.Matrix, dt float64) (*mat.Dense, *mat.Dense) {
	n, _ := a.Dims()
	_, m := b.Dims()

	cont := mat.NewDense(n+m, n+m, nil)
	cont.Slice(0, n, 0, n).(*mat.Dense).Scale(dt, a)
	cont.Slice(0, n, n, n+m).(*mat.Dense).Scale(dt, b)

	var disc mat.Dense
	disc.Exp(cont)
	return mat.DenseCopyOf(disc.Slice(0, n, 0, n)), mat.DenseCopyOf(disc.Slice(0, n, n, n+m))
}

// DARE solves the discrete algebraic Riccati equation
//
//	AᵀXA − X − AᵀXB(R + BᵀXB)⁻¹BᵀXA + Q = 0
//
// by structure-preserving doubling.
func DARE(a, b, q, r mat.Matrix) (*mat.Dense, error) {
	n, _ := a.Dims()

	var rInv mat.Dense
	if err := rInv.Inverse(r); err != nil {
		return nil, errors.Wrap(err, "R is not invertible")
	}
	ak := mat.DenseCopyOf(a)
	gk := &mat.Dense{}
	gk.Product(b, &rInv, b.T())
	hk := mat.DenseCopyOf(q)

	eye := mat.NewDiagDense(n, nil)
	for i := range n {
		eye.SetDiag(i, 1)
	}

	for range dareMaxIterations {
		var w, wInv mat.Dense
		w.Mul(gk, hk)
		w.Add(&w, eye)
		if err := wInv.Inverse(&w); err != nil {
			return nil, errors.Wrap(err, "riccati iteration is singular")
		}
		var wInvA, wInvG mat.Dense
		wInvA.Mul(&wInv, ak)
		wInvG.Mul(&wInv, gk)

		var aNext, gNext, hNext mat.Dense
		aNext.Mul(ak, &wInvA)
		gNext.Product(ak, &wInvG, ak.T())
		gNext.Add(gk, &gNext)
		hNext.Product(ak.T(), hk, &wInvA)
		hNext.Add(hk, &hNext)

		var diff mat.Dense
		diff.Sub(&hNext, hk)
		ak, gk, hk = &aNext, &gNext, &hNext
		if mat.Norm(&diff, 1) <= dareTolerance*mat.Norm(hk, 1) {
			return hk, nil
		}
	}
	return nil, errors.New("riccati iteration did not converge")
}

// LQRGain returns the gain K minimizing the quadratic cost of the discrete system (a, b), so that
// u = −Kx. Use K·(reference − x) for tracking.
func LQRGain(a, b, q, r mat.Matrix) (*mat.Dense, error) {
	p, err := DARE(a, b, q, r)
	if err != nil {
		return nil, err
	}
	// K = (R + BᵀPB)⁻¹BᵀPA
	var lhs, btp, rhs mat.Dense
	btp.Mul(b.T(), p)
	lhs.Mul(&btp, b)
	lhs.Add(&lhs, r)
	rhs.Mul(&btp, a)

	var k mat.Dense
	if err := k.Solve(&lhs, &rhs); err != nil {
		return nil, errors.Wrap(err, "cannot solve for LQR gain")
	}
	return &k, nil
}
