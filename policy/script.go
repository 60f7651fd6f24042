package policy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// ScriptPolicy evaluates incidents through an embedded JavaScript rule.
// The script must define a function
//
//	function decide(incident) { return {raise: true, cooldownSeconds: 3}; }
//
// where incident has string `kind` and numeric `detectedAt` (unix
// milliseconds). The returned object's fields are both optional; a missing
// `raise` defaults to true.
type ScriptPolicy struct {
	mu     sync.Mutex
	vm     *goja.Runtime
	decide goja.Callable
}

func NewScriptPolicy(script string) (*ScriptPolicy, error) {
	vm := goja.New()
	if _, err := vm.RunString(script); err != nil {
		return nil, fmt.Errorf("policy script: %w", err)
	}
	fn, ok := goja.AssertFunction(vm.Get("decide"))
	if !ok {
		return nil, fmt.Errorf("policy script does not define decide()")
	}
	return &ScriptPolicy{vm: vm, decide: fn}, nil
}

func (p *ScriptPolicy) Decide(ctx context.Context, in Input) (Decision, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	done := make(chan struct{})
	defer close(done)
	defer p.vm.ClearInterrupt()
	go func() {
		select {
		case <-ctx.Done():
			p.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	arg := p.vm.NewObject()
	if err := arg.Set("kind", in.Kind); err != nil {
		return Decision{}, err
	}
	if err := arg.Set("detectedAt", in.DetectedAt.UnixMilli()); err != nil {
		return Decision{}, err
	}
	val, err := p.decide(goja.Undefined(), arg)
	if err != nil {
		if interrupted, ok := err.(*goja.InterruptedError); ok {
			if cause, ok := interrupted.Value().(error); ok {
				return Decision{}, cause
			}
			return Decision{}, context.Canceled
		}
		return Decision{}, fmt.Errorf("policy script: %w", err)
	}

	dec := Decision{Raise: true}
	if goja.IsUndefined(val) || goja.IsNull(val) {
		return dec, nil
	}
	obj := val.ToObject(p.vm)
	if raise := obj.Get("raise"); raise != nil && !goja.IsUndefined(raise) && !goja.IsNull(raise) {
		dec.Raise = raise.ToBoolean()
	}
	if cd := obj.Get("cooldownSeconds"); cd != nil && !goja.IsUndefined(cd) && !goja.IsNull(cd) {
		dec.Cooldown = time.Duration(cd.ToFloat() * float64(time.Second))
	}
	return dec, nil
}
