package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMeter_Line(t *testing.T) {
	m := NewMeter(nil, false)

	line := m.line(Status{Archive: "ndvi-seca-1a2b", Total: 10, Done: 5, Failed: 1, Bytes: 2048}, 10*time.Second)
	assert.Equal(t, "ndvi-seca-1a2b  50% 5/10 tiles 2.0 kB, 1 failed, 10s left", line)

	line = m.line(Status{Archive: "x", Total: 4, Done: 4}, time.Second)
	assert.Equal(t, "x 100% 4/4 tiles 0 B", line)

	assert.Equal(t, "x   0% 0/0 tiles 0 B", m.line(Status{Archive: "x"}, 0))
}

func TestMeter_Update(t *testing.T) {
	var buf bytes.Buffer
	m := NewMeter(&buf, true)

	m.Update(Status{Archive: "rgb-1", Total: 2, Done: 1, Bytes: 10})
	assert.Contains(t, buf.String(), "\rrgb-1  50% 1/2 tiles 10 B")

	m.Update(Status{Archive: "rgb-1", Total: 2, Done: 2, Bytes: 20})
	m.Finish()
	assert.Contains(t, buf.String(), "2/2 tiles 20 B")
	assert.Equal(t, byte('\n'), buf.Bytes()[buf.Len()-1])
}

func TestMeter_Disabled(t *testing.T) {
	var buf bytes.Buffer
	m := NewMeter(&buf, false)
	m.Update(Status{Archive: "rgb-1", Total: 2, Done: 1})
	m.Finish()
	assert.Zero(t, buf.Len())
}
