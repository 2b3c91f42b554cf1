package decode

import (
	"errors"
	"testing"

	"github.com/jsphweid/leadsheet/envelope"
	"github.com/jsphweid/leadsheet/model"
	"github.com/jsphweid/leadsheet/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const autumn = "irealbook://Autumn Leaves=Kosma Joseph=Medium Swing=Gm=n=" +
	"{*AT44C-7 F7 |Bb^7 Eb^7 |A-7b5 D7 |G-6   }Z"

func TestDecodeRecord(t *testing.T) {
	song, diags, err := DecodeRecord(autumn, scanner.Options{Strict: true})
	require.NoError(t, err)
	assert.Empty(t, diags)

	assert := assert.New(t)
	assert.Equal("Autumn Leaves", song.Title)
	assert.Equal("Kosma Joseph", song.Author)
	assert.Equal("Medium Swing", song.Tempo)
	assert.Equal("Gm", song.Key)
	assert.Equal(model.KeySignature{Letter: "G", Mode: model.Minor}, *song.Staffs[0].Measures[0].Key)
	assert.NoError(song.Validate())

	first := song.Staffs[0].Measures[0]
	assert.Equal("A", first.Section)
	assert.Equal("C-7", first.Slots[0].Chord.String())
	assert.Equal("F7", first.Slots[1].Chord.String())
}

func TestDecodeUnescapes(t *testing.T) {
	raw := "irealbook://Blue%20Bossa=Dorham%20Kenny=Bossa%20Nova=Cm=n=%7C*AT44C-%5E7%20Z"
	song, _, err := Decode(raw, scanner.Options{Strict: true})
	require.NoError(t, err)

	assert.Equal(t, "Blue Bossa", song.Title)
	slot := song.Staffs[0].Measures[0].Slots[0]
	assert.Equal(t, "C", slot.Chord.Root)
	assert.Equal(t, "-^7", slot.Chord.Quality)
}

func TestDecodeLeavesPlainRecords(t *testing.T) {
	song, diags, err := Decode("irealbook://Blues=Me=Swing=C=n=|C7|%|%Z", scanner.Options{Strict: true})
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Equal(t, 3, song.NumMeasures())
	last := song.Last()
	require.NotNil(t, last.Slots[0].Symbol)
	assert.Equal(t, model.SymbolRepeatOne, last.Slots[0].Symbol.Kind)

	// the same chart copied from a link
	escaped, _, err := Decode("irealbook://Blues=Me=Swing=C=n=%7CC7%7C%25%7C%25Z", scanner.Options{Strict: true})
	require.NoError(t, err)
	assert.Equal(t, song, escaped)
}

func TestNormalize(t *testing.T) {
	s, err := Normalize("  irealbook://My%20Song=Me=Swing=C=n=%7BC7%20%7CF7%20Z ")
	require.NoError(t, err)
	assert.Equal(t, "irealbook://My Song=Me=Swing=C=n={C7 |F7 Z", s)

	s, err = Normalize("irealbook://Blues=Me=Swing=C=n=|C7|%|%Z\n")
	require.NoError(t, err)
	assert.Equal(t, "irealbook://Blues=Me=Swing=C=n=|C7|%|%Z", s)
}

func TestDecodeErrors(t *testing.T) {
	_, _, err := Decode("irealbook://broken", scanner.Options{})
	assert.True(t, errors.Is(err, envelope.ErrEnvelopeFormat))

	_, _, err = Decode("irealbook://%zz", scanner.Options{})
	assert.True(t, errors.Is(err, envelope.ErrEnvelopeFormat))

	_, _, err = DecodeRecord("irealbook://Song=Me=Swing=C=n=|C7|T0xF Z", scanner.Options{Strict: true})
	assert.True(t, errors.Is(err, scanner.ErrInvalidTimeSignature))
}

func TestWire(t *testing.T) {
	_, diags, err := DecodeRecord("irealbook://Song=Me=Swing=C=n=|C7 Y|7 Z", scanner.Options{})
	require.NoError(t, err)

	wire := Wire(diags)
	require.Len(t, wire, 2)
	assert.Equal(t, model.Diagnostic{Pos: 4, Severity: "warning", Message: `unsupported symbol ignored: 'Y'`}, wire[0])
	assert.Equal(t, "error", wire[1].Severity)
	assert.Equal(t, 6, wire[1].Pos)
}
