// Package testutil builds tiny WebAssembly components for tests that need a
// real guest on the other side of the host bindings.
package testutil

// Guest describes a generated component. It exports "memory", "start" and,
// unless NoAllocate is set, "allocate".
//
// When Import is set, start calls that import with Request (placed at offset
// 0 of guest memory) and returns the import's packed response. Without an
// import, start returns Request itself.
type Guest struct {
	ImportModule string
	ImportName   string
	Request      []byte
	NoAllocate   bool
}

// ResponseOffset is where the generated allocate places every response.
const ResponseOffset = 1024

const (
	valI32 = 0x7f
	valI64 = 0x7e
)

// Bytes encodes the component as a WebAssembly binary.
func (g Guest) Bytes() []byte {
	hasImport := g.ImportModule != ""

	types := vec(
		funcType([]byte{valI64}, []byte{valI64}), // 0: host import
		funcType([]byte{valI32}, []byte{valI32}), // 1: allocate
		funcType(nil, []byte{valI64}),            // 2: start
	)

	var funcIdx uint64
	var imports []byte
	if hasImport {
		imports = vec(concat(name(g.ImportModule), name(g.ImportName), []byte{0x00}, uleb(0)))
		funcIdx = 1
	}

	var funcs, exports, bodies [][]byte
	if !g.NoAllocate {
		funcs = append(funcs, uleb(1))
		exports = append(exports, concat(name("allocate"), []byte{0x00}, uleb(funcIdx)))
		bodies = append(bodies, body(concat([]byte{0x41}, sleb(ResponseOffset))))
		funcIdx++
	}
	funcs = append(funcs, uleb(2))
	exports = append(exports,
		concat(name("start"), []byte{0x00}, uleb(funcIdx)),
		concat(name("memory"), []byte{0x02}, uleb(0)),
	)
	start := concat([]byte{0x42}, sleb(int64(len(g.Request))))
	if hasImport {
		start = concat(start, []byte{0x10}, uleb(0))
	}
	bodies = append(bodies, body(start))

	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	out = append(out, section(1, types)...)
	if hasImport {
		out = append(out, section(2, imports)...)
	}
	out = append(out, section(3, vec(funcs...))...)
	out = append(out, section(5, vec(concat([]byte{0x00}, uleb(1))))...)
	out = append(out, section(7, vec(exports...))...)
	out = append(out, section(10, vec(bodies...))...)
	if len(g.Request) > 0 {
		segment := concat([]byte{0x00, 0x41, 0x00, 0x0b}, uleb(uint64(len(g.Request))), g.Request)
		out = append(out, section(11, vec(segment))...)
	}
	return out
}

func funcType(params, results []byte) []byte {
	return concat([]byte{0x60}, uleb(uint64(len(params))), params, uleb(uint64(len(results))), results)
}

func body(instrs []byte) []byte {
	b := concat([]byte{0x00}, instrs, []byte{0x0b})
	return concat(uleb(uint64(len(b))), b)
}

func section(id byte, contents []byte) []byte {
	return concat([]byte{id}, uleb(uint64(len(contents))), contents)
}

func vec(items ...[]byte) []byte {
	return concat(append([][]byte{uleb(uint64(len(items)))}, items...)...)
}

func name(s string) []byte {
	return concat(uleb(uint64(len(s))), []byte(s))
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}
