package fit

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-binspec/binary"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNumericDivergence is returned when the residual becomes non-finite.
	ErrNumericDivergence = errors.New("fit: non-finite residual")
	// ErrMask is returned when the pixel mask does not fit the model or
	// selects fewer pixels than parameters.
	ErrMask = errors.New("fit: unusable pixel mask")
)

const (
	initialLambda = 1e-3
	maxLambda     = 1e10
	// jacobianStep is the forward-difference step in scaled coordinates.
	jacobianStep = 1e-6
	// dampingFloor keeps the damped normal matrix regular for parameters
	// without influence on the residual.
	dampingFloor = 1e-12
)

// Evaluator computes the composite model for a parameter set.
type Evaluator interface {
	Evaluate(binary.Params) (*binary.Evaluation, error)
}

// Event reports the progress of a fit.
type Event struct {
	Iteration   int
	Evaluations int
	State       State
	Params      binary.Params
	Cost        float64
	Lambda      float64
	// Agreement is 100*sum(|model-flux|)/N over all pixels.
	Agreement float64
	Eval      *binary.Evaluation
}

// Result is the outcome of Fit.
type Result struct {
	Params      binary.Params
	Vector      []float64
	State       State
	Reason      string
	Iterations  int
	Evaluations int
	// Cost is chi^2/2 over the masked pixels.
	Cost        float64
	Chi2        float64
	ReducedChi2 float64
	Agreement   float64
	// Uncertainty is the standard error per vector entry, in layout units,
	// scaled by the reduced chi^2.
	Uncertainty []float64
	Eval        *binary.Evaluation
}

// problem holds the state shared by the residual and Jacobian evaluations.
type problem struct {
	model  Evaluator
	layout *binary.Layout
	mask   []bool
	x0     []float64
	scale  []float64
	lo, hi []float64

	evaluations int
	err         error
}

// vector maps scaled coordinates to a bounded parameter vector.
func (p *problem) vector(u []float64) []float64 {
	x := make([]float64, len(u))
	for i := range u {
		x[i] = math.Min(math.Max(p.x0[i]+u[i]*p.scale[i], p.lo[i]), p.hi[i])
	}
	return x
}

// project clamps u so that vector(u) needs no clamping.
func (p *problem) project(u []float64) {
	x := p.vector(u)
	for i := range u {
		u[i] = (x[i] - p.x0[i]) / p.scale[i]
	}
}

// residual evaluates the weighted residual of the masked pixels into r.
func (p *problem) residual(r, u []float64) (*binary.Evaluation, error) {
	params, err := p.layout.Unpack(p.vector(u))
	if err != nil {
		return nil, err
	}
	p.evaluations++
	ev, err := p.model.Evaluate(params)
	if err != nil {
		return nil, err
	}
	if len(ev.Flux) != len(p.mask) {
		return nil, fmt.Errorf("%w: %d mask entries for %d pixels", ErrMask, len(p.mask), len(ev.Flux))
	}
	k := 0
	for i, ok := range p.mask {
		if !ok {
			continue
		}
		r[k] = (ev.Model[i] - ev.Flux[i]) / math.Sqrt(ev.Sigma2[i])
		if math.IsNaN(r[k]) || math.IsInf(r[k], 0) {
			return ev, fmt.Errorf("%w: pixel %d", ErrNumericDivergence, i)
		}
		k++
	}
	return ev, nil
}

// jacobian fills dst with the forward-difference Jacobian at u. A parameter
// whose forward step would cross its upper bound is differenced backwards
// instead, so parameters resting on a bound keep a non-zero column.
func (p *problem) jacobian(dst *mat.Dense, u, r []float64) error {
	dir := make([]float64, len(u))
	for i := range u {
		dir[i] = 1
		if p.x0[i]+(u[i]+jacobianStep)*p.scale[i] > p.hi[i] {
			dir[i] = -1
		}
	}

	p.err = nil
	x := make([]float64, len(u))
	fd.Jacobian(dst, func(y, v []float64) {
		if p.err != nil {
			return
		}
		for i := range v {
			x[i] = u[i] + dir[i]*(v[i]-u[i])
		}
		if _, err := p.residual(y, x); err != nil {
			p.err = err
		}
	}, u, &fd.JacobianSettings{
		Formula:     fd.Forward,
		OriginValue: r,
		Step:        jacobianStep,
	})

	rows, _ := dst.Dims()
	for j, d := range dir {
		if d > 0 {
			continue
		}
		for i := range rows {
			dst.Set(i, j, -dst.At(i, j))
		}
	}
	return p.err
}

// Fit runs Levenberg-Marquardt from initial over the pixels selected by
// mask. A failed fit returns its partial Result together with the error.
func Fit(model Evaluator, layout *binary.Layout, initial binary.Params, mask []bool, opts ...Option) (*Result, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	n := layout.Len()
	m := 0
	for _, ok := range mask {
		if ok {
			m++
		}
	}
	if m <= n {
		return nil, fmt.Errorf("%w: %d pixels for %d parameters", ErrMask, m, n)
	}

	p := &problem{model: model, layout: layout, mask: mask, x0: layout.Pack(initial), scale: layout.Scales()}
	p.lo, p.hi = layout.Bounds()

	u := make([]float64, n)
	p.project(u)
	r := make([]float64, m)

	res := &Result{State: Initial}
	emit := func(iter int, lambda float64, ev *binary.Evaluation, chi2 float64) {
		if cfg.observer == nil {
			return
		}
		params, _ := layout.Unpack(p.vector(u))
		cfg.observer(Event{
			Iteration:   iter,
			Evaluations: p.evaluations,
			State:       res.State,
			Params:      params,
			Cost:        chi2 / 2,
			Lambda:      lambda,
			Agreement:   Agreement(ev),
			Eval:        ev,
		})
	}
	fail := func(iter int, ev *binary.Evaluation, chi2 float64, err error) (*Result, error) {
		res.State = Failed
		res.Reason = err.Error()
		res.Iterations = iter
		res.fill(p, u, ev, chi2, m)
		emit(iter, math.NaN(), ev, chi2)
		return res, err
	}

	ev, err := p.residual(r, u)
	if err != nil {
		return fail(0, ev, math.NaN(), err)
	}
	chi2 := floats.Dot(r, r)

	jac := mat.NewDense(m, n, nil)
	trialR := make([]float64, m)
	trialU := make([]float64, n)
	lambda := initialLambda
	res.State = Iterating
	emit(0, lambda, ev, chi2)

	iter := 0
	for res.State == Iterating {
		if chi2 == 0 {
			res.State, res.Reason = Converged, "exact fit"
			break
		}
		if iter == cfg.maxIterations {
			res.State, res.Reason = MaxIterations, fmt.Sprintf("%d iterations", iter)
			break
		}
		iter++

		if err := p.jacobian(jac, u, r); err != nil {
			return fail(iter, ev, chi2, err)
		}
		var a mat.Dense
		a.Mul(jac.T(), jac)
		var g mat.VecDense
		g.MulVec(jac.T(), mat.NewVecDense(m, r))

		for {
			step, ok := solveDamped(&a, &g, lambda)
			if ok {
				for i := range u {
					trialU[i] = u[i] + step[i]
				}
				p.project(trialU)
				trialEv, err := p.residual(trialR, trialU)
				if err != nil {
					return fail(iter, ev, chi2, err)
				}
				trialChi2 := floats.Dot(trialR, trialR)
				if trialChi2 < chi2 {
					dx := floats.Distance(trialU, u, 2)
					reduction := (chi2 - trialChi2) / chi2
					copy(u, trialU)
					copy(r, trialR)
					ev, chi2 = trialEv, trialChi2
					lambda = math.Max(lambda/10, 1e-12)
					switch {
					case reduction < cfg.ftol:
						res.State, res.Reason = Converged, "relative chi2 reduction below ftol"
					case dx <= cfg.xtol*(floats.Norm(u, 2)+cfg.xtol):
						res.State, res.Reason = Converged, "relative step below xtol"
					}
					break
				}
			}
			lambda *= 10
			if lambda > maxLambda {
				res.State, res.Reason = Converged, "no further improvement"
				break
			}
		}

		if res.State == Iterating && iter%cfg.eventInterval == 0 {
			emit(iter, lambda, ev, chi2)
		}
	}

	res.Iterations = iter
	res.fill(p, u, ev, chi2, m)
	if err := res.uncertainty(p, jac, u, r, m); err != nil {
		return fail(iter, ev, chi2, err)
	}
	emit(iter, lambda, ev, chi2)
	return res, nil
}

// solveDamped solves (A + lambda*diag(A)) step = -g.
func solveDamped(a *mat.Dense, g *mat.VecDense, lambda float64) ([]float64, bool) {
	n, _ := a.Dims()
	damped := mat.DenseCopyOf(a)
	for i := range n {
		d := a.At(i, i)
		damped.Set(i, i, d+lambda*math.Max(d, dampingFloor))
	}
	var neg mat.VecDense
	neg.ScaleVec(-1, g)
	var step mat.VecDense
	if err := step.SolveVec(damped, &neg); err != nil {
		return nil, false
	}
	out := mat.Col(nil, 0, &step)
	for _, v := range out {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
	}
	return out, true
}

func (res *Result) fill(p *problem, u []float64, ev *binary.Evaluation, chi2 float64, m int) {
	res.Vector = p.vector(u)
	res.Params, _ = p.layout.Unpack(res.Vector)
	res.Evaluations = p.evaluations
	res.Chi2 = chi2
	res.Cost = chi2 / 2
	res.ReducedChi2 = math.NaN()
	if dof := m - len(u); dof > 0 {
		res.ReducedChi2 = chi2 / float64(dof)
	}
	res.Eval = ev
	if ev != nil {
		res.Agreement = Agreement(ev)
	}
}

// uncertainty estimates standard errors from the Jacobian at the solution.
func (res *Result) uncertainty(p *problem, jac *mat.Dense, u, r []float64, m int) error {
	n := len(u)
	res.Uncertainty = make([]float64, n)
	for i := range res.Uncertainty {
		res.Uncertainty[i] = math.NaN()
	}
	if err := p.jacobian(jac, u, r); err != nil {
		return err
	}
	var a, cov mat.Dense
	a.Mul(jac.T(), jac)
	if err := cov.Inverse(&a); err != nil {
		return nil
	}
	s := res.ReducedChi2
	if math.IsNaN(s) {
		s = 1
	}
	for i := range n {
		if v := cov.At(i, i) * s; v >= 0 {
			res.Uncertainty[i] = math.Sqrt(v) * p.scale[i]
		}
	}
	return nil
}

// Agreement is 100*sum(|model-flux|)/N over all pixels of ev.
func Agreement(ev *binary.Evaluation) float64 {
	if ev == nil || len(ev.Flux) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for i := range ev.Flux {
		sum += math.Abs(ev.Model[i] - ev.Flux[i])
	}
	return 100 * sum / float64(len(ev.Flux))
}
