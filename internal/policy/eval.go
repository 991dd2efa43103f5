package policy

// MaxDepth is the recursion limit enforced per evaluation (spec §4.2, §5).
const MaxDepth = 64

// evalState threads the mutable gas/depth counters through one evaluation.
// It is never shared across evaluations — each eval_policy call owns one.
type evalState struct {
	gas   int64
	depth int64
}

// EvalPolicy evaluates an AST under env, initializing gas to env.MaxGas and
// depth to zero, and returns the resulting Value (spec §4.2 "Entry").
func EvalPolicy(ast Value, env *Env) (Value, error) {
	v, _, err := EvalPolicyGas(ast, env)
	return v, err
}

// EvalPolicyGas evaluates ast exactly like EvalPolicy but also reports the
// gas consumed (env.MaxGas minus whatever remained when evaluation stopped),
// for callers instrumenting evaluation cost — e.g. the gateway's per-request
// gas histogram (SPEC_FULL.md §4.7).
func EvalPolicyGas(ast Value, env *Env) (Value, int64, error) {
	st := &evalState{gas: env.MaxGas}
	v, err := eval(ast, env, st)
	return v, env.MaxGas - st.gas, err
}

func eval(node Value, env *Env, st *evalState) (Value, error) {
	st.gas--
	if st.gas < 0 {
		return Value{}, ErrGasExceeded
	}
	st.depth++
	if st.depth > MaxDepth {
		st.depth--
		return Value{}, ErrDepthExceeded
	}
	result, err := evalInner(node, env, st)
	st.depth--
	return result, err
}

func evalInner(node Value, env *Env, st *evalState) (Value, error) {
	switch node.kind {
	case KindList:
		items := node.list
		if len(items) == 0 {
			return Nil(), nil
		}
		head := items[0]
		if head.kind != KindSymbol {
			return Value{}, ErrOperatorShape
		}
		return evalOp(head.s, items[1:], env, st)
	case KindSymbol:
		return resolveSymbol(node.s, env), nil
	default:
		// Bool, Number, Str, Nil all return themselves.
		return node, nil
	}
}

// resolveSymbol implements spec §4.2's symbol-resolution rule: "now" and any
// other name look up env.Vars, falling back to the bare symbol itself when
// unbound — a bare operator name used outside head position is simply a
// symbol value, never an error.
func resolveSymbol(name string, env *Env) Value {
	switch name {
	case "#t":
		return Bool(true)
	case "#f":
		return Bool(false)
	}
	if v, ok := env.Vars[name]; ok {
		return v
	}
	return Symbol(name)
}

func evalOp(op string, args []Value, env *Env, st *evalState) (Value, error) {
	switch op {
	case "and":
		for _, a := range args {
			v, err := eval(a, env, st)
			if err != nil {
				return Value{}, err
			}
			if !v.Truthy() {
				return Bool(false), nil
			}
		}
		return Bool(true), nil

	case "or":
		for _, a := range args {
			v, err := eval(a, env, st)
			if err != nil {
				return Value{}, err
			}
			if v.Truthy() {
				return Bool(true), nil
			}
		}
		return Bool(false), nil

	case "not":
		v, err := eval(args[0], env, st)
		if err != nil {
			return Value{}, err
		}
		return Bool(!v.Truthy()), nil

	case "=":
		a, err := eval(args[0], env, st)
		if err != nil {
			return Value{}, err
		}
		b, err := eval(args[1], env, st)
		if err != nil {
			return Value{}, err
		}
		return Bool(Eq(a, b)), nil

	case "<", "<=", ">", ">=":
		a, err := eval(args[0], env, st)
		if err != nil {
			return Value{}, err
		}
		b, err := eval(args[1], env, st)
		if err != nil {
			return Value{}, err
		}
		af, bf := a.Coerce0(), b.Coerce0()
		var result bool
		switch op {
		case "<":
			result = af < bf
		case "<=":
			result = af <= bf
		case ">":
			result = af > bf
		case ">=":
			result = af >= bf
		}
		return Bool(result), nil

	case "member", "in":
		val, err := eval(args[0], env, st)
		if err != nil {
			return Value{}, err
		}
		lst, err := eval(args[1], env, st)
		if err != nil {
			return Value{}, err
		}
		if lst.kind != KindList {
			return Bool(false), nil
		}
		for _, item := range lst.list {
			if Eq(item, val) {
				return Bool(true), nil
			}
		}
		return Bool(false), nil

	case "subset?":
		a, err := eval(args[0], env, st)
		if err != nil {
			return Value{}, err
		}
		b, err := eval(args[1], env, st)
		if err != nil {
			return Value{}, err
		}
		if a.kind != KindList || b.kind != KindList {
			return Bool(false), nil
		}
		for _, item := range a.list {
			found := false
			for _, candidate := range b.list {
				if Eq(item, candidate) {
					found = true
					break
				}
			}
			if !found {
				return Bool(false), nil
			}
		}
		return Bool(true), nil

	case "before":
		a, err := eval(args[0], env, st)
		if err != nil {
			return Value{}, err
		}
		b, err := eval(args[1], env, st)
		if err != nil {
			return Value{}, err
		}
		return Bool(a.String() < b.String()), nil

	case "get":
		return evalGet(args, env, st)

	case "tuple":
		result := make([]Value, 0, len(args))
		for _, a := range args {
			v, err := eval(a, env, st)
			if err != nil {
				return Value{}, err
			}
			result = append(result, v)
		}
		return List(result), nil

	case "per-day-count":
		action, err := eval(args[0], env, st)
		if err != nil {
			return Value{}, err
		}
		day, err := eval(args[1], env, st)
		if err != nil {
			return Value{}, err
		}
		count, err := env.PerDayCount(action.String(), day.String())
		if err != nil {
			return Value{}, err
		}
		return Number(float64(count)), nil

	case "dpop_ok?":
		return Bool(env.Crypto.DpopOk()), nil

	case "merkle_ok?":
		evaluated := make([]Value, 0, len(args))
		for _, a := range args {
			v, err := eval(a, env, st)
			if err != nil {
				return Value{}, err
			}
			evaluated = append(evaluated, v)
		}
		return Bool(env.Crypto.MerkleOk(evaluated)), nil

	case "vrf_ok?":
		day, err := eval(args[0], env, st)
		if err != nil {
			return Value{}, err
		}
		amount, err := eval(args[1], env, st)
		if err != nil {
			return Value{}, err
		}
		return Bool(env.Crypto.VrfOk(day.String(), amount.Coerce0())), nil

	case "thresh_ok?":
		return Bool(env.Crypto.ThreshOk()), nil

	default:
		return Value{}, &UnknownOperatorError{Op: op}
	}
}

// evalGet implements the (get req "key") form (spec §4.2.1): only the
// literal symbol req in object position resolves against env.Req; every
// other object position returns Nil, matching the original implementation's
// refusal to do map-like lookups into arbitrary vars.
func evalGet(args []Value, env *Env, st *evalState) (Value, error) {
	obj := args[0]
	key, err := eval(args[1], env, st)
	if err != nil {
		return Value{}, err
	}
	if key.kind != KindStr {
		return Nil(), nil
	}
	if obj.kind == KindSymbol && obj.s == "req" {
		if v, ok := env.Req[key.s]; ok {
			return v, nil
		}
		return Nil(), nil
	}
	return Nil(), nil
}
