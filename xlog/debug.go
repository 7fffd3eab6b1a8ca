package xlog

import (
	"bytes"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"github.com/golang/glog"
)

// Assert family adapts cmn/debug.Assert* for invariant violations that
// spec.md §7 calls out as programmer errors: a Range read after the owning
// SGL was cleared, an encoder asked to delta-encode an unsorted sequence,
// and similar. Unlike the teacher's `+build debug` gated variant, these are
// compiled in unconditionally — the spec treats them as fatal assertions,
// not opt-in diagnostics.

func Assert(cond bool, a ...interface{}) {
	if !cond {
		panicWithTrace(a...)
	}
}

func Assertf(cond bool, format string, a ...interface{}) {
	if !cond {
		panicWithTrace(fmt.Sprintf(format, a...))
	}
}

func AssertNoErr(err error) {
	if err != nil {
		panicWithTrace(err)
	}
}

func AssertMutexLocked(m *sync.Mutex) {
	state := reflect.ValueOf(m).Elem().FieldByName("state")
	Assert(state.Int()&1 == 1, "mutex not locked")
}

func AssertRWMutexLocked(m *sync.RWMutex) {
	state := reflect.ValueOf(m).Elem().FieldByName("w").FieldByName("state")
	Assert(state.Int()&1 == 1, "rwmutex not locked for writing")
}

func panicWithTrace(a ...interface{}) {
	msg := "replicore invariant violation: "
	if len(a) > 0 {
		msg += fmt.Sprint(a...)
	}
	buf := bytes.NewBufferString(msg)
	for i := 2; i < 9; i++ {
		_, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		if !strings.Contains(file, "replicore") {
			break
		}
		if buf.Len() > len(msg) {
			buf.WriteString(" <- ")
		}
		fmt.Fprintf(buf, "%s:%d", file, line)
	}
	glog.Errorf("%s", buf.String())
	glog.Flush()
	panic(msg)
}
