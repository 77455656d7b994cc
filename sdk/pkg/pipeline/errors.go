package pipeline

import (
	"errors"
	"fmt"

	"github.com/ChenBigdata421/jxt-railflow/sdk/pkg/faultinject"
)

// 除故障注入步骤外，周期内其余可失败的步骤
const (
	StepTake      faultinject.Step = "take"
	StepEncode    faultinject.Step = "encode"
	StepReconnect faultinject.Step = "reconnect"
	StepSetup     faultinject.Step = "setup"
)

// ErrorClass 周期失败的分类，决定日志字段，不影响重试策略
type ErrorClass string

const (
	ClassInjected  ErrorClass = "injected"
	ClassTransient ErrorClass = "transient"
	ClassPanic     ErrorClass = "panic"
)

// StepError 周期中某一步的失败
type StepError struct {
	Stage string
	Step  faultinject.Step
	Queue string
	Err   error
}

func (e *StepError) Error() string {
	if e.Queue != "" {
		return fmt.Sprintf("%s: %s %s: %v", e.Stage, e.Step, e.Queue, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// PanicError 周期内 recover 到的 panic
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Classify 失败分类
func Classify(err error) ErrorClass {
	var p *PanicError
	switch {
	case errors.As(err, &p):
		return ClassPanic
	case errors.Is(err, faultinject.ErrInjected):
		return ClassInjected
	default:
		return ClassTransient
	}
}

// StepOf 取出失败步骤，非 StepError 时返回空
func StepOf(err error) faultinject.Step {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step
	}
	return ""
}
