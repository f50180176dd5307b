package vm

// LanguageVersion is the value of the preregistered VERSION global.
const LanguageVersion = 1

// InstallBuiltins preregisters the native functions and constant
// globals every program can see.
func InstallBuiltins(g *Global, h *Heap) {
	g.AddNative(h, "native-square", func(machine *VM) error {
		x, err := machine.Peek(0)
		if err != nil {
			return err
		}
		if !x.IsNumber() {
			return machine.eb.typeMismatch("number", x.TypeName())
		}
		return machine.Push(MakeNumber(x.Num * x.Num))
	}, 1)

	g.AddNative(h, "sum", func(machine *VM) error {
		v2, err := machine.Peek(0)
		if err != nil {
			return err
		}
		v1, err := machine.Peek(1)
		if err != nil {
			return err
		}
		if !v1.IsNumber() || !v2.IsNumber() {
			return machine.eb.typeMismatch("number", v1.TypeName()+" and "+v2.TypeName())
		}
		return machine.Push(MakeNumber(v1.Num + v2.Num))
	}, 2)

	g.AddConst("VERSION", LanguageVersion)
}
