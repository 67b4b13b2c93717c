package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rustSample = `
struct Cache {
    data: u32,
}

impl Cache {
    fn get(&self, key: &str) -> u32 {
        self.data
    }
}

fn helper() -> bool {
    true
}
`

func TestExtractRustStructAndMethod(t *testing.T) {
	syms := Extract([]byte(rustSample), "rust", "cache.rs")
	require.NotEmpty(t, syms)

	assert.True(t, hasSymbol(syms, "Cache", KindStruct))
	assert.True(t, hasSymbol(syms, "helper", KindFunction))

	var method *Symbol
	for i := range syms {
		if syms[i].Name == "get" && syms[i].Kind == KindMethod {
			method = &syms[i]
		}
	}
	require.NotNil(t, method)
	assert.Equal(t, "Cache", method.Parent)
}

const pythonSample = `
class Service:
    def handle(self):
        pass

def standalone():
    pass
`

func TestExtractPythonClassAndFunction(t *testing.T) {
	syms := Extract([]byte(pythonSample), "python", "service.py")
	require.NotEmpty(t, syms)
	assert.True(t, hasSymbol(syms, "Service", KindClass))
	assert.True(t, hasSymbol(syms, "standalone", KindFunction))
}

func TestExtractGoFunctionAndType(t *testing.T) {
	src := `
package main

type Widget struct {
	Name string
}

func NewWidget() *Widget {
	return &Widget{}
}
`
	syms := Extract([]byte(src), "go", "widget.go")
	require.NotEmpty(t, syms)
	assert.True(t, hasSymbol(syms, "NewWidget", KindFunction))
}

func TestExtractUnsupportedLanguageFallsBack(t *testing.T) {
	src := "function deploy() {\n  echo hi\n}\n"
	syms := Extract([]byte(src), "bash", "deploy.sh")
	require.NotEmpty(t, syms)
	assert.Equal(t, "deploy", syms[0].Name)
	assert.Equal(t, KindOther, syms[0].Kind)
}

func TestExtractMalformedInputNeverErrors(t *testing.T) {
	src := "fn broken( {{{ not valid rust at all"
	assert.NotPanics(t, func() {
		_ = Extract([]byte(src), "rust", "broken.rs")
	})
}

func hasSymbol(syms []Symbol, name string, kind Kind) bool {
	for _, s := range syms {
		if s.Name == name && s.Kind == kind {
			return true
		}
	}
	return false
}
