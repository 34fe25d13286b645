// Package train drives the optimization loop: one document per step,
// forward, backward, Adam, and periodic samples from the current weights.
package train

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"microgpt/pkg/autograd"
	"microgpt/pkg/model"
	"microgpt/pkg/optim"
)

var (
	ErrAlreadyStarted = errors.New("train: session already started")
	ErrBusy           = errors.New("train: session is running")
	ErrFinished       = errors.New("train: all steps done")
)

// Status is the lifecycle state of a Session.
type Status int

const (
	Idle Status = iota
	Running
	Cancelling
	Done
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Cancelling:
		return "cancelling"
	case Done:
		return "done"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Options controls a training run.
type Options struct {
	NumSteps     int          `json:"num_steps"`
	Adam         optim.Config `json:"adam"`
	LinearDecay  bool         `json:"linear_decay"`  // lr falls linearly to zero over the run
	YieldEvery   int          `json:"yield_every"`   // <= 0 never yields
	SmoothFactor float64      `json:"smooth_factor"` // EMA weight on the previous smoothed loss
	SampleEvery  int          `json:"sample_every"`  // <= 0 disables live samples
	SampleCount  int          `json:"sample_count"`
	Sampling     model.SamplingOptions
}

func DefaultOptions() Options {
	return Options{
		NumSteps:     1000,
		Adam:         optim.DefaultConfig(),
		YieldEvery:   10,
		SmoothFactor: 0.95,
		SampleCount:  3,
		Sampling:     model.DefaultSamplingOptions(),
	}
}

func (o Options) Validate() error {
	if o.NumSteps < 1 {
		return fmt.Errorf("num_steps must be positive, got %d", o.NumSteps)
	}
	if err := o.Adam.Validate(); err != nil {
		return err
	}
	if !(o.SmoothFactor >= 0 && o.SmoothFactor < 1) {
		return fmt.Errorf("smooth_factor must be in [0,1), got %g", o.SmoothFactor)
	}
	if o.SampleEvery > 0 {
		if o.SampleCount < 1 {
			return fmt.Errorf("sample_count must be positive when sampling, got %d", o.SampleCount)
		}
		if !(o.Sampling.Temperature > 0) {
			return fmt.Errorf("temperature must be positive, got %g", o.Sampling.Temperature)
		}
	}
	return nil
}

// StepResult reports one completed optimization step. Step is 1-based.
type StepResult struct {
	Step         int
	NumSteps     int
	Loss         float64
	SmoothLoss   float64
	LearningRate float64
	SeqLen       int
	Samples      []string
	Elapsed      time.Duration
}

func (r StepResult) String() string {
	return fmt.Sprintf("step %4d / %4d | loss %.4f", r.Step, r.NumSteps, r.Loss)
}

// Summary describes a finished run.
type Summary struct {
	Steps      int
	Loss       float64
	SmoothLoss float64
	Cancelled  bool
	Elapsed    time.Duration
}

// Session owns the parameters, optimizer state and configuration of one
// training run. It can be run once; the trained model stays usable after.
type Session struct {
	docs  []string
	tok   model.Tokenizer
	cfg   model.Config
	opts  Options
	gpt   *model.GPT
	adam  *optim.State
	rng   *rand.Rand
	begin time.Time

	// work serializes everything that touches parameters or rng.
	work sync.Mutex

	mu        sync.Mutex
	status    Status
	step      int
	loss      float64
	smooth    float64
	cancelled bool
}

// NewSession validates the configuration and initializes the parameters.
// A nil rng is seeded randomly.
func NewSession(docs []string, tok model.Tokenizer, cfg model.Config, opts Options, rng *rand.Rand) (*Session, error) {
	if len(docs) == 0 {
		return nil, errors.New("train: no documents")
	}
	if tok == nil {
		return nil, errors.New("train: nil tokenizer")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid training options: %w", err)
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	params, err := model.InitParameters(tok.VocabSize(), cfg, rng)
	if err != nil {
		return nil, err
	}
	return &Session{
		docs: docs,
		tok:  tok,
		cfg:  cfg,
		opts: opts,
		gpt:  model.NewGPT(params, cfg),
		adam: optim.NewState(params.NumParams()),
		rng:  rng,
	}, nil
}

func (s *Session) GPT() *model.GPT             { return s.gpt }
func (s *Session) Tokenizer() model.Tokenizer { return s.tok }
func (s *Session) Options() Options           { return s.opts }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// StepCount is the number of completed steps.
func (s *Session) StepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Summary reports the run so far.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	var elapsed time.Duration
	if !s.begin.IsZero() {
		elapsed = time.Since(s.begin)
	}
	return Summary{
		Steps:      s.step,
		Loss:       s.loss,
		SmoothLoss: s.smooth,
		Cancelled:  s.cancelled,
		Elapsed:    elapsed,
	}
}

// LearningRate returns the rate used for the 0-based step index.
func (s *Session) LearningRate(step int) float64 {
	lr := s.opts.Adam.LearningRate
	if s.opts.LinearDecay {
		lr *= 1 - float64(step)/float64(s.opts.NumSteps)
	}
	return lr
}

// Step runs one synchronous step outside of a stream. It returns ErrBusy
// while a stream is running and ErrFinished once every step is done. The
// final manual step moves the session to Done.
func (s *Session) Step() (StepResult, error) {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()
	switch st {
	case Running, Cancelling:
		return StepResult{}, ErrBusy
	case Done:
		return StepResult{}, ErrFinished
	}
	return s.runStep()
}

func (s *Session) runStep() (StepResult, error) {
	s.work.Lock()
	defer s.work.Unlock()

	s.mu.Lock()
	step := s.step
	if step >= s.opts.NumSteps {
		s.mu.Unlock()
		return StepResult{}, ErrFinished
	}
	if s.begin.IsZero() {
		s.begin = time.Now()
	}
	begin := s.begin
	s.mu.Unlock()

	tokens := s.tok.Encode(s.docs[step%len(s.docs)])
	loss, err := s.gpt.Loss(tokens)
	if err != nil {
		return StepResult{}, fmt.Errorf("step %d: %w", step+1, err)
	}
	autograd.Backward(loss)
	lr := s.LearningRate(step)
	if err := optim.StepLR(s.gpt.Params.Params(), s.adam, s.opts.Adam, lr); err != nil {
		return StepResult{}, err
	}

	res := StepResult{
		Step:         step + 1,
		NumSteps:     s.opts.NumSteps,
		Loss:         loss.Data,
		LearningRate: lr,
		SeqLen:       min(len(tokens)-1, s.cfg.BlockSize),
	}
	if n := s.opts.SampleEvery; n > 0 && (res.Step%n == 0 || res.Step == res.NumSteps) {
		for range s.opts.SampleCount {
			text, err := model.Generate(s.gpt, s.tok, s.opts.Sampling, s.rng)
			if err != nil {
				return StepResult{}, fmt.Errorf("step %d: sample: %w", res.Step, err)
			}
			res.Samples = append(res.Samples, text)
		}
	}

	s.mu.Lock()
	s.step = res.Step
	s.loss = res.Loss
	if res.Step == 1 {
		s.smooth = res.Loss
	} else {
		f := s.opts.SmoothFactor
		s.smooth = f*s.smooth + (1-f)*res.Loss
	}
	res.SmoothLoss = s.smooth
	if res.Step == res.NumSteps && s.status == Idle {
		s.status = Done
	}
	s.mu.Unlock()
	res.Elapsed = time.Since(begin)
	return res, nil
}

func (s *Session) claim() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != Idle {
		return ErrAlreadyStarted
	}
	s.status = Running
	return nil
}

func (s *Session) finish(cancelled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Done
	s.cancelled = cancelled
}

// run steps until NumSteps, ctx is done, yield returns false, or a step fails.
// ctx is only checked between steps.
func (s *Session) run(ctx context.Context, yield func(StepResult, error) bool) {
	cancelled := false
	defer func() { s.finish(cancelled) }()
	for s.StepCount() < s.opts.NumSteps {
		if ctx.Err() != nil {
			cancelled = true
			return
		}
		res, err := s.runStep()
		if err != nil {
			yield(StepResult{}, err)
			return
		}
		if !yield(res, nil) {
			cancelled = res.Step < s.opts.NumSteps
			return
		}
		if s.opts.YieldEvery > 0 && res.Step%s.opts.YieldEvery == 0 {
			runtime.Gosched()
		}
	}
}

// Steps returns the step stream. It can be ranged over once; later calls
// yield ErrAlreadyStarted. Stopping early or cancelling ctx ends the run
// without an error and leaves the weights usable.
func (s *Session) Steps(ctx context.Context) iter.Seq2[StepResult, error] {
	return func(yield func(StepResult, error) bool) {
		if err := s.claim(); err != nil {
			yield(StepResult{}, err)
			return
		}
		s.run(ctx, yield)
	}
}

// Generate samples one document from the current weights.
func (s *Session) Generate(opts model.SamplingOptions) (string, error) {
	switch s.Status() {
	case Running, Cancelling:
		return "", ErrBusy
	}
	s.work.Lock()
	defer s.work.Unlock()
	return model.Generate(s.gpt, s.tok, opts, s.rng)
}

// Handle controls a run started with Start.
type Handle struct {
	sess    *Session
	results chan StepResult
	done    chan struct{}
	cancel  context.CancelFunc
	summary Summary
	err     error
}

// Start runs the step stream on its own goroutine. Results carries every
// completed step, including one that finished while Abort was landing, and
// must be drained until it is closed. A full buffer stalls the run until
// Abort.
func (s *Session) Start(ctx context.Context) (*Handle, error) {
	if err := s.claim(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		sess:    s,
		results: make(chan StepResult, 64),
		done:    make(chan struct{}),
		cancel:  cancel,
	}
	go func() {
		var pending *StepResult
		s.run(ctx, func(res StepResult, err error) bool {
			if err != nil {
				h.err = err
				return false
			}
			select {
			case h.results <- res:
				return true
			case <-ctx.Done():
				pending = &res
				return false
			}
		})
		h.summary = s.Summary()
		cancel()
		close(h.done)
		if pending != nil {
			h.results <- *pending
		}
		close(h.results)
	}()
	return h, nil
}

// Results is closed after the last completed step has been received.
func (h *Handle) Results() <-chan StepResult { return h.results }

// Done is closed once the summary is available. Results may still hold
// steps at that point.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Abort asks the run to stop at the next step boundary.
func (h *Handle) Abort() {
	h.sess.mu.Lock()
	if h.sess.status == Running {
		h.sess.status = Cancelling
	}
	h.sess.mu.Unlock()
	h.cancel()
}

// Wait blocks until the run ends. A cancelled run is not an error. It does
// not wait for Results to be drained.
func (h *Handle) Wait() (Summary, error) {
	<-h.done
	return h.summary, h.err
}
