package actuator

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	duties []uint8
	err    error
}

func (r *recordingChannel) SetDuty(d uint8) error {
	if r.err != nil {
		return r.err
	}
	r.duties = append(r.duties, d)
	return nil
}

func TestController_SetBrightness(t *testing.T) {
	ch1, ch2 := &recordingChannel{}, &recordingChannel{}
	c, err := NewController(ch1, ch2, nil)
	require.NoError(t, err)
	assert.False(t, c.Enabled())

	require.NoError(t, c.SetBrightness(180))
	assert.Equal(t, []uint8{0, 180}, ch1.duties)
	assert.Equal(t, []uint8{0, 180}, ch2.duties)
	assert.True(t, c.Enabled())

	b, err := c.Brightness(Channel2)
	require.NoError(t, err)
	assert.Equal(t, uint8(180), b)
}

func TestController_SetChannel(t *testing.T) {
	c, err := NewController(&recordingChannel{}, &recordingChannel{}, nil)
	require.NoError(t, err)

	require.NoError(t, c.SetChannel(Channel2, 7))
	b1, _ := c.Brightness(Channel1)
	b2, _ := c.Brightness(Channel2)
	assert.Equal(t, uint8(0), b1)
	assert.Equal(t, uint8(7), b2)
	assert.True(t, c.Enabled())

	assert.ErrorIs(t, c.SetChannel(2, 1), ErrChannel)
	_, err = c.Brightness(-1)
	assert.ErrorIs(t, err, ErrChannel)
}

func TestController_FailureKeepsLastDuty(t *testing.T) {
	ch1, ch2 := &recordingChannel{}, &recordingChannel{}
	c, err := NewController(ch1, ch2, nil)
	require.NoError(t, err)
	require.NoError(t, c.SetBrightness(50))

	ch2.err = errors.New("bus fault")
	assert.Error(t, c.SetBrightness(90))

	b1, _ := c.Brightness(Channel1)
	b2, _ := c.Brightness(Channel2)
	assert.Equal(t, uint8(90), b1)
	assert.Equal(t, uint8(50), b2)
}

type bufCloser struct {
	bytes.Buffer
	closed bool
}

func (b *bufCloser) Close() error {
	b.closed = true
	return nil
}

func TestSerialDriver_Frames(t *testing.T) {
	buf := &bufCloser{}
	d := newSerialDriver(buf)

	c, err := NewController(d.Channel(0), d.Channel(1), nil)
	require.NoError(t, err)
	buf.Reset()

	require.NoError(t, c.SetBrightness(0x3C))
	assert.Equal(t, []byte{
		0xA5, 0x00, 0x3C, 0xA5 ^ 0x3C,
		0xA5, 0x01, 0x3C, 0xA5 ^ 0x01 ^ 0x3C,
	}, buf.Bytes())

	require.NoError(t, d.Close())
	assert.True(t, buf.closed)
}
