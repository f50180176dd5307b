package vm_test

import (
	"errors"
	"strings"
	"testing"

	"eva/internal/driver"
	"eva/internal/vm"
)

// run executes source through the whole pipeline and fails the test on
// any compile or runtime error.
func run(t *testing.T, src string) (vm.Value, *driver.Result) {
	t.Helper()

	value, res, err := driver.Exec(src, driver.Options{})
	if err != nil {
		if res != nil && res.Bag != nil && res.Bag.HasErrors() {
			var sb strings.Builder
			for _, d := range res.Bag.Items() {
				sb.WriteString(d.Message)
				sb.WriteString("\n")
			}
			t.Fatalf("compilation errors:\n%s", sb.String())
		}
		t.Fatalf("unexpected error: %v", err)
	}
	return value, res
}

// runNumber executes source and asserts a numeric result.
func runNumber(t *testing.T, src string, want float64) {
	t.Helper()

	value, _ := run(t, src)
	if !value.IsNumber() {
		t.Fatalf("expected number, got %s: %s", value.TypeName(), value)
	}
	if value.Num != want {
		t.Errorf("expected %v, got %v", want, value.Num)
	}
}

// runString executes source and asserts a string result.
func runString(t *testing.T, src string, want string) {
	t.Helper()

	value, _ := run(t, src)
	if !value.IsString() {
		t.Fatalf("expected string, got %s: %s", value.TypeName(), value)
	}
	if value.AsString() != want {
		t.Errorf("expected %q, got %q", want, value.AsString())
	}
}

// runError executes source and asserts a runtime fault with the given
// code.
func runError(t *testing.T, src string, code vm.PanicCode) {
	t.Helper()

	_, _, err := driver.Exec(src, driver.Options{})
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	var vmErr *vm.VMError
	if !errors.As(err, &vmErr) {
		t.Fatalf("expected VMError, got %v", err)
	}
	if vmErr.Code != code {
		t.Errorf("expected %s, got %s (%v)", code, vmErr.Code, vmErr)
	}
}

func TestArithmetic(t *testing.T) {
	runNumber(t, `(+ 1 2)`, 3)
	runNumber(t, `(- 10 4)`, 6)
	runNumber(t, `(* 6 7)`, 42)
	runNumber(t, `(/ 10 4)`, 2.5)
	runNumber(t, `(+ (* 2 3) (- 10 5))`, 11)
}

func TestGlobalVariables(t *testing.T) {
	runNumber(t, `(var x 10) (set x (+ x 5)) x`, 15)
}

func TestSetIsAnExpression(t *testing.T) {
	// (set x (set x v)) leaves x = v.
	runNumber(t, `(var x 1) (set x (set x 42)) x`, 42)
}

func TestPreregisteredGlobals(t *testing.T) {
	runNumber(t, `VERSION`, vm.LanguageVersion)
	runNumber(t, `(native-square 7)`, 49)
	runNumber(t, `(sum 3 4)`, 7)
	runNumber(t, `(sum (native-square 2) 1)`, 5)
}

func TestFunctionDeclaration(t *testing.T) {
	runNumber(t, `(def square (x) (* x x)) (square 7)`, 49)
}

func TestFunctionWithBlockBody(t *testing.T) {
	runNumber(t, `
		(def calc (x y)
			(begin
				(var z 30)
				(+ (* x y) z)))
		(calc 10 20)`, 230)
}

func TestLocalScopes(t *testing.T) {
	runNumber(t, `
		(var x 5)
		(begin
			(var x 100)
			x)`, 100)
	runNumber(t, `
		(var x 5)
		(begin
			(var x 100)
			x)
		x`, 5)
}

func TestRecursion(t *testing.T) {
	runNumber(t, `
		(def factorial (n)
			(if (<= n 1)
				1
				(* n (factorial (- n 1)))))
		(factorial 5)`, 120)
}

func TestLambda(t *testing.T) {
	runNumber(t, `((lambda (x) (* x x)) 6)`, 36)
	runNumber(t, `(var sq (lambda (x) (* x x))) (sq 9)`, 81)
}

func TestRecursiveLambdaVariable(t *testing.T) {
	// The lambda body reads the global slot that the var defines.
	runNumber(t, `
		(var factorial (lambda (n)
			(if (<= n 1)
				1
				(* n (factorial (- n 1))))))
		(factorial 6)`, 720)
}

func TestClosureCapture(t *testing.T) {
	runNumber(t, `
		(var make-adder (lambda (n) (lambda (x) (+ x n))))
		(var add5 (make-adder 5))
		(add5 10)`, 15)
}

func TestClosuresShareState(t *testing.T) {
	runNumber(t, `
		(def make-counter ()
			(begin
				(var count 0)
				(lambda () (set count (+ count 1)))))
		(var tick (make-counter))
		(tick)
		(tick)
		(tick)`, 3)
}

func TestClosuresAreIndependent(t *testing.T) {
	runNumber(t, `
		(var make-adder (lambda (n) (lambda (x) (+ x n))))
		(var add5 (make-adder 5))
		(var add9 (make-adder 9))
		(+ (add5 1) (add9 1))`, 16)
}

func TestWhile(t *testing.T) {
	runNumber(t, `
		(var i 0)
		(var total 0)
		(while (< i 5)
			(begin
				(set total (+ total i))
				(set i (+ i 1))))
		total`, 10)
}

func TestIf(t *testing.T) {
	runString(t, `(if (== 1 1) "yes" "no")`, "yes")
	runString(t, `(if (!= 1 1) "yes" "no")`, "no")
	runNumber(t, `(if (> 2 1) 10 20)`, 10)
}

func TestIfWithoutAlternate(t *testing.T) {
	value, _ := run(t, `(if (< 2 1) 10)`)
	if !value.IsBool() || value.Bool {
		t.Errorf("expected false, got %s", value)
	}
}

func TestStrings(t *testing.T) {
	runString(t, `(+ "a" "b")`, "ab")
	runString(t, `(+ (+ "foo" " ") "bar")`, "foo bar")

	value, _ := run(t, `(== "abc" "abc")`)
	if !value.IsBool() || !value.Bool {
		t.Errorf("expected true, got %s", value)
	}
	value, _ = run(t, `(< "abc" "abd")`)
	if !value.IsBool() || !value.Bool {
		t.Errorf("expected true, got %s", value)
	}
}

func TestComparisons(t *testing.T) {
	for src, want := range map[string]bool{
		`(< 1 2)`:  true,
		`(> 1 2)`:  false,
		`(== 2 2)`: true,
		`(>= 2 2)`: true,
		`(<= 3 2)`: false,
		`(!= 1 2)`: true,
	} {
		value, _ := run(t, src)
		if !value.IsBool() || value.Bool != want {
			t.Errorf("%s: expected %v, got %s", src, want, value)
		}
	}
}

func TestStackBalancedAtHalt(t *testing.T) {
	_, res := run(t, `
		(var i 0)
		(while (< i 3)
			(begin
				(var inner 1)
				(set i (+ i inner))))
		i`)
	// OpHalt popped the single result; nothing else may remain.
	if depth := res.Machine.StackDepth(); depth != 0 {
		t.Errorf("expected empty stack after halt, got depth %d", depth)
	}
}

func TestNativeCallKeepsStackBalanced(t *testing.T) {
	_, res := run(t, `(+ (native-square 3) (native-square 4))`)
	if depth := res.Machine.StackDepth(); depth != 0 {
		t.Errorf("expected empty stack after halt, got depth %d", depth)
	}
}

func TestClasses(t *testing.T) {
	runNumber(t, `
		(class Point false
			(def constructor (self x y)
				(begin
					(set (prop self x) x)
					(set (prop self y) y)))
			(def calc (self)
				(+ (prop self x) (prop self y))))
		(var p (new Point 10 20))
		((prop p calc) p)`, 30)
}

func TestClassPropertyAccess(t *testing.T) {
	runNumber(t, `
		(class Box false
			(def constructor (self v)
				(set (prop self value) v)))
		(var b (new Box 5))
		(set (prop b value) 42)
		(prop b value)`, 42)
}

func TestInheritance(t *testing.T) {
	runNumber(t, `
		(class Point false
			(def constructor (self x y)
				(begin
					(set (prop self x) x)
					(set (prop self y) y)))
			(def calc (self)
				(+ (prop self x) (prop self y))))
		(class Point3D Point
			(def constructor (self x y z)
				(begin
					((prop (super Point3D) constructor) self x y)
					(set (prop self z) z)))
			(def calc (self)
				(+ ((prop (super Point3D) calc) self) (prop self z))))
		(var p (new Point3D 10 20 30))
		((prop p calc) p)`, 60)
}

func TestPropertyNotFound(t *testing.T) {
	runError(t, `
		(class Empty false
			(def constructor (self) self))
		(var e (new Empty))
		(prop e missing)`, vm.PanicPropertyNotFound)
}

func TestTypeMismatch(t *testing.T) {
	runError(t, `(+ 1 true)`, vm.PanicTypeMismatch)
	runError(t, `(+ "a" 1)`, vm.PanicTypeMismatch)
	runError(t, `(< 1 "a")`, vm.PanicTypeMismatch)
	runError(t, `(if 1 2 3)`, vm.PanicTypeMismatch)
}

func TestNotCallable(t *testing.T) {
	runError(t, `(var x 1) (x 2)`, vm.PanicNotCallable)
}

func TestBadArity(t *testing.T) {
	runError(t, `(def f (x) x) (f 1 2)`, vm.PanicBadArity)
	runError(t, `(native-square 1 2)`, vm.PanicBadArity)
}

func TestStackOverflow(t *testing.T) {
	runError(t, `(def loop (n) (loop n)) (loop 0)`, vm.PanicStackOverflow)
}

func TestGCUnderStringChurn(t *testing.T) {
	src := `
		(var i 0)
		(var s "")
		(while (< i 50)
			(begin
				(set s (+ s "x"))
				(set i (+ i 1))))
		s`

	value, res, err := driver.Exec(src, driver.Options{GCThreshold: 256})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !value.IsString() || len(value.AsString()) != 50 {
		t.Fatalf("expected 50-byte string, got %s", value)
	}

	// The 49 intermediate strings are garbage; cycles must have
	// reclaimed most of them.
	stats := res.Stats
	if stats.Objects > 30 {
		t.Errorf("expected intermediate strings to be collected, %d objects live", stats.Objects)
	}

	// bytesAllocated must equal the sum over the allocation list.
	total := 0
	res.Machine.Heap.ForEach(func(obj *vm.Object) bool {
		total += obj.Size()
		return true
	})
	if total != stats.BytesAllocated {
		t.Errorf("list total %d != bytesAllocated %d", total, stats.BytesAllocated)
	}
}
