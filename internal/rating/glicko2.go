// internal/rating/glicko2.go
package rating

import (
	"math"
)

const (
	// GlickoScale is the multiplier used for converting between the rating scale and Glicko2's mu.
	GlickoScale = 173.7178
	// BaseRating is the rating that maps to mu = 0.
	BaseRating = 1500.0
	// Tau is the constraint on volatility changes.
	Tau = 0.75
	// Epsilon is the tolerance used in the volatility iteration.
	Epsilon = 0.000001
)

// Glicko2Rating holds the transformed rating (Mu), rating deviation (Phi),
// and volatility (Sigma) for a single player in Glicko2 space.
type Glicko2Rating struct {
	Mu    float64
	Phi   float64
	Sigma float64
}

// NewGlicko2Rating converts a rating, rating deviation and volatility on the
// 1500-based scale into Glicko2 space.
func NewGlicko2Rating(rating, rd, sigma float64) Glicko2Rating {
	return Glicko2Rating{
		Mu:    (rating - BaseRating) / GlickoScale,
		Phi:   rd / GlickoScale,
		Sigma: sigma,
	}
}

// Rating converts Mu back to the 1500-based scale.
func (r Glicko2Rating) Rating() float64 {
	return r.Mu*GlickoScale + BaseRating
}

// RD converts Phi back to the 1500-based scale.
func (r Glicko2Rating) RD() float64 {
	return r.Phi * GlickoScale
}

// game is one result inside a rating period, from the rated player's point of view.
type game struct {
	opp   Glicko2Rating
	score float64
}

// updatePeriod applies one Glicko2 rating period to r given every game it played
// in that period. Opponent ratings must be the pre-period values.
func updatePeriod(r Glicko2Rating, games []game) Glicko2Rating {
	if len(games) == 0 {
		// Step 6 only: uncertainty grows, nothing else moves.
		return Glicko2Rating{
			Mu:    r.Mu,
			Phi:   math.Sqrt(r.Phi*r.Phi + r.Sigma*r.Sigma),
			Sigma: r.Sigma,
		}
	}

	var vInv, sum float64
	for _, gm := range games {
		gVal := g(gm.opp.Phi)
		eVal := E(r.Mu, gm.opp.Mu, gm.opp.Phi)
		vInv += gVal * gVal * eVal * (1 - eVal)
		sum += gVal * (gm.score - eVal)
	}
	v := 1.0 / vInv
	delta := v * sum

	newSigma := volatility(r.Phi, r.Sigma, v, delta)

	phiStar := math.Sqrt(r.Phi*r.Phi + newSigma*newSigma)
	phiPrime := 1.0 / math.Sqrt(1.0/(phiStar*phiStar)+1.0/v)
	muPrime := r.Mu + phiPrime*phiPrime*sum

	return Glicko2Rating{
		Mu:    muPrime,
		Phi:   phiPrime,
		Sigma: newSigma,
	}
}

// volatility runs the Illinois iteration of Glicko2 step 5.
func volatility(phi, sigma, v, delta float64) float64 {
	a := math.Log(sigma * sigma)
	fx := func(x float64) float64 {
		return f(x, phi, v, delta, a)
	}

	A := a
	var B float64
	if delta*delta > phi*phi+v {
		B = math.Log(delta*delta - phi*phi - v)
	} else {
		k := 1.0
		for fx(a-k*Tau) < 0 {
			k++
		}
		B = a - k*Tau
	}

	fA := fx(A)
	fB := fx(B)
	for i := 0; i < 100 && math.Abs(B-A) > Epsilon; i++ {
		C := A + (A-B)*fA/(fB-fA)
		fC := fx(C)
		if fC*fB <= 0 {
			A, fA = B, fB
		} else {
			fA /= 2
		}
		B, fB = C, fC
	}
	return math.Exp(A / 2)
}

// g is the G(phi) factor from Glicko2, applying the standard formula 1/sqrt(1+3phi^2/pi^2).
func g(phi float64) float64 {
	return 1.0 / math.Sqrt(1.0+3.0*phi*phi/math.Pi/math.Pi)
}

// E is the expected score formula in Glicko2 space, E(mu,mu2,phi2)=1/(1+exp[-g(phi2)*(mu-mu2)])
func E(mu, mu2, phi2 float64) float64 {
	return 1.0 / (1.0 + math.Exp(-g(phi2)*(mu-mu2)))
}

// f is the Glicko2 volatility root-finding function used in the iterative volatility update.
func f(x, phi, v, delta, a float64) float64 {
	ex := math.Exp(x)
	num := ex * (delta*delta - phi*phi - v - ex)
	den := 2.0 * (phi*phi + v + ex) * (phi*phi + v + ex)
	return (num / den) - ((x - a) / (Tau * Tau))
}
