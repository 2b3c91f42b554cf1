package scanner

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jsphweid/leadsheet/keysig"
	"github.com/jsphweid/leadsheet/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strictScan(t *testing.T, key, body string) *model.Song {
	t.Helper()
	song, diags, err := New(Options{Strict: true}).Scan(Header{Title: "Test", Key: key}, body)
	require.NoError(t, err)
	require.False(t, HasErrors(diags), "diagnostics: %v", diags)
	require.NoError(t, song.Validate())
	return song
}

func lenientScan(t *testing.T, key, body string) (*model.Song, []Diagnostic) {
	t.Helper()
	song, diags, err := New(Options{}).Scan(Header{Title: "Test", Key: key}, body)
	require.NoError(t, err)
	require.NotNil(t, song)
	return song, diags
}

func measures(song *model.Song) []*model.Measure {
	var res []*model.Measure
	song.Each(func(_ model.MeasureRef, m *model.Measure) {
		res = append(res, m)
	})
	return res
}

func TestSingleChordSong(t *testing.T) {
	song := strictScan(t, "C", "|CZ")

	assert := assert.New(t)
	assert.Len(song.Staffs, 1)
	assert.Len(song.Staffs[0].Measures, 1)

	m := song.Staffs[0].Measures[0]
	assert.Len(m.Slots, 1)
	assert.Equal("C", m.Slots[0].Chord.Root)
	assert.Equal("", m.Slots[0].Chord.Quality)
	assert.Equal(model.BarlineFinal, m.StopBarline)
	assert.Equal(model.BarlineSingle, m.StartBarline)
}

func TestRepeatBarlines(t *testing.T) {
	song := strictScan(t, "C", "{A7|B-7}Z")
	ms := measures(song)

	assert := assert.New(t)
	require.GreaterOrEqual(t, len(ms), 2)
	assert.Equal(model.BarlineRepeat, ms[0].StartBarline)
	assert.Equal(model.BarlineRepeat, ms[1].StopBarline)
	assert.Equal("A7", ms[0].Slots[0].Chord.String())
	assert.Equal("B-7", ms[1].Slots[0].Chord.String())
	assert.Len(ms[0].Slots, 1)
	assert.Len(ms[1].Slots, 1)
}

func TestSpaceSeparatedSlots(t *testing.T) {
	song := strictScan(t, "C", "|C D A-7 E7 Z")
	ms := measures(song)

	require.Len(t, ms, 1)
	var got []string
	for _, slot := range ms[0].Slots {
		got = append(got, slot.Chord.String())
	}
	assert.Equal(t, []string{"C", "D", "A-7", "E7"}, got)
}

func TestSpaceAfterChordOnlySeparates(t *testing.T) {
	ms := measures(strictScan(t, "C", "|A-7   |C7 F7 |Z"))

	require.Len(t, ms, 3)
	require.Len(t, ms[0].Slots, 3)
	assert.Equal(t, "A-7", ms[0].Slots[0].Chord.String())
	assert.True(t, ms[0].Slots[1].Chord.IsPlaceholder())
	assert.True(t, ms[0].Slots[2].Chord.IsPlaceholder())
	assert.Len(t, ms[1].Slots, 2)
}

func TestRepeatOneMeasureSymbol(t *testing.T) {
	song := strictScan(t, "C", "|C7|%|%Z")
	ms := measures(song)

	require.Len(t, ms, 3)
	slot := ms[2].Slots[0]
	assert.Nil(t, slot.Chord)
	require.NotNil(t, slot.Symbol)
	assert.Equal(t, model.SymbolRepeatOne, slot.Symbol.Kind)
	assert.False(t, ms[2].Empty)
}

func TestAlternateChord(t *testing.T) {
	song := strictScan(t, "C", "|G7(C7)Z")
	m := measures(song)[0]

	assert := assert.New(t)
	require.Len(t, m.Slots, 1)
	assert.Equal("G7", m.Slots[0].Chord.String())
	require.Len(t, m.Slots[0].Alternates, 1)
	alt := m.Slots[0].Alternates[0]
	assert.Equal("C7", alt.String())
	assert.True(alt.Alternate)
	assert.Equal(0, alt.Slot)
	assert.Equal(1, m.NumChords())
}

func TestEndings(t *testing.T) {
	song := strictScan(t, "G", "N1G6|E7}N2G6|Bb-7Z")
	ms := measures(song)

	assert := assert.New(t)
	require.Len(t, ms, 4)
	assert.Equal("1", ms[0].Ending)
	assert.Equal("G6", ms[0].Slots[0].Chord.String())
	assert.Equal(model.BarlineRepeat, ms[1].StopBarline)
	assert.Equal("2", ms[2].Ending)
	assert.Equal("", ms[1].Ending)
	assert.Equal("", ms[3].Ending)
	assert.Equal("Bb", ms[3].Slots[0].Chord.Root)
	assert.Equal("-7", ms[3].Slots[0].Chord.Quality)
}

func TestDeterministic(t *testing.T) {
	body := "{*AT44A-7   |A-^7   |A-7   |A-6   |B-7   |C9#11   |B-7   |E7   Z"
	first := strictScan(t, "G", body)
	second := strictScan(t, "G", body)
	assert.Equal(t, first, second)
}

func TestSlotsWrapIntoNextMeasure(t *testing.T) {
	song := strictScan(t, "C", "|C D E F G A Z")
	ms := measures(song)

	require.Len(t, ms, 2)
	assert.Len(t, ms[0].Slots, 4)
	assert.Len(t, ms[1].Slots, 2)
	assert.Equal(t, "G", ms[1].Slots[0].Chord.Root)
	for _, m := range ms {
		for i, slot := range m.Slots {
			assert.Equal(t, i, slot.Index)
		}
	}
}

func TestPlaceholdersWrap(t *testing.T) {
	// a barline followed by spaces fills blank beats
	song := strictScan(t, "C", "|C7|     Z")
	ms := measures(song)

	require.Len(t, ms, 3)
	assert.Len(t, ms[1].Slots, 4)
	assert.Len(t, ms[2].Slots, 1)
	assert.True(t, ms[1].Slots[0].Chord.IsPlaceholder())
	assert.True(t, ms[1].Empty)
}

func TestStavesWrapAfterFourMeasures(t *testing.T) {
	body := strings.Repeat("|C7", 10) + "Z"
	song := strictScan(t, "C", body)

	require.Len(t, song.Staffs, 3)
	assert.Len(t, song.Staffs[0].Measures, 4)
	assert.Len(t, song.Staffs[1].Measures, 4)
	assert.Len(t, song.Staffs[2].Measures, 2)
	for i, st := range song.Staffs {
		assert.Equal(t, i, st.Index)
	}
}

func TestKeySignatureOnlyOnFirstMeasure(t *testing.T) {
	song := strictScan(t, "Ebm", strings.Repeat("|C7", 6)+"Z")

	var withKey []model.MeasureRef
	song.Each(func(ref model.MeasureRef, m *model.Measure) {
		if m.Key != nil {
			withKey = append(withKey, ref)
		}
	})
	require.Equal(t, []model.MeasureRef{{Staff: 0, Measure: 0}}, withKey)

	key := song.Staffs[0].Measures[0].Key
	assert.Equal(t, model.KeySignature{Letter: "E", Accidental: "b", Mode: model.Minor}, *key)
}

func TestTerminators(t *testing.T) {
	for _, body := range []string{"|C7 Z", "|C7 =", "|C7 Z|D7 ", "Z"} {
		t.Run(body, func(t *testing.T) {
			song := strictScan(t, "C", body)
			assert.Equal(t, model.BarlineFinal, song.Last().StopBarline)
		})
	}
}

func TestUnterminatedSong(t *testing.T) {
	_, _, err := New(Options{Strict: true}).Scan(Header{Key: "C"}, "|C7|F7")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnterminatedSong))

	var se *ScanError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 6, se.Pos)

	song, diags := lenientScan(t, "C", "|C7|F7")
	require.Len(t, diags, 1)
	assert.True(t, errors.Is(diags[0].Err, ErrUnterminatedSong))
	assert.Equal(t, 2, song.NumMeasures())
	assert.Equal(t, "F7", song.Last().Slots[0].Chord.String())
}

func TestUnterminatedTokens(t *testing.T) {
	for _, body := range []string{"|C7*abc", "|C7<Fine", "|C7T4", "|C7N", "|C7(", "|C7r", "|C7*"} {
		t.Run(body, func(t *testing.T) {
			_, _, err := New(Options{Strict: true}).Scan(Header{Key: "C"}, body)
			assert.True(t, errors.Is(err, ErrUnterminatedSong), "got %v", err)

			_, diags := lenientScan(t, "C", body)
			require.Len(t, diags, 1, "one diagnostic, not a second one for the end of input")
			assert.True(t, errors.Is(diags[0].Err, ErrUnterminatedSong))
		})
	}
}

func TestTimeSignature(t *testing.T) {
	song := strictScan(t, "C", "[T34C^7  |T68D-7 Z")
	ms := measures(song)

	assert.Equal(t, &model.TimeSignature{Beats: 3, Unit: 4}, ms[0].Time)
	assert.Equal(t, &model.TimeSignature{Beats: 6, Unit: 8}, ms[1].Time)
	assert.Equal(t, model.BarlineDouble, ms[0].StartBarline)
}

func TestInvalidTimeSignature(t *testing.T) {
	for _, body := range []string{"|TA4C Z", "|T4xC Z", "|T04C Z"} {
		t.Run(body, func(t *testing.T) {
			_, _, err := New(Options{Strict: true}).Scan(Header{Key: "C"}, body)
			assert.True(t, errors.Is(err, ErrInvalidTimeSignature), "got %v", err)

			song, diags := lenientScan(t, "C", body)
			require.Len(t, diags, 1)
			assert.Nil(t, song.Staffs[0].Measures[0].Time)
			assert.Equal(t, "C", song.Staffs[0].Measures[0].Slots[0].Chord.Root)
		})
	}
}

func TestUnknownKeySignature(t *testing.T) {
	_, _, err := New(Options{Strict: true}).Scan(Header{Key: "H"}, "|CZ")
	require.Error(t, err)
	assert.True(t, errors.Is(err, keysig.ErrUnknownKeySignature))

	song, diags := lenientScan(t, "H", "|CZ")
	require.Len(t, diags, 1)
	assert.Nil(t, song.Staffs[0].Measures[0].Key)
	assert.Equal(t, "C", song.Staffs[0].Measures[0].Slots[0].Chord.Root)
}

func TestOrphanModifiers(t *testing.T) {
	cases := map[string]string{
		"stray quality":         "|7 Z",
		"text without chord":    "|*xyz* Z",
		"alternate before slot": "|(C7)Z",
		"after comma":           "|C7,9 Z",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := New(Options{Strict: true}).Scan(Header{Key: "C"}, body)
			assert.True(t, errors.Is(err, ErrOrphanModifier), "got %v", err)

			song, diags := lenientScan(t, "C", body)
			assert.True(t, HasErrors(diags))
			assert.Equal(t, model.BarlineFinal, song.Last().StopBarline)
		})
	}
}

func TestUnsupportedSymbolsWarn(t *testing.T) {
	song, diags, err := New(Options{Strict: true}).Scan(Header{Key: "C"}, "|C7 Y|pF7 Z")
	require.NoError(t, err)
	require.Len(t, diags, 2)
	for _, d := range diags {
		assert.Equal(t, SeverityWarning, d.Severity)
		assert.True(t, errors.Is(d.Err, ErrUnsupportedSymbol))
	}
	assert.Equal(t, 4, diags[0].Err.Pos)
	assert.Equal(t, byte('p'), diags[1].Err.Char)
	assert.False(t, HasErrors(diags))
	assert.Equal(t, 2, song.NumMeasures())
}

func TestBassNotesAndAccidentals(t *testing.T) {
	song := strictScan(t, "C", "|C#-7/G#  Bb^7/D Z")
	slots := measures(song)[0].Slots

	require.Len(t, slots, 3)
	first := slots[0].Chord
	assert.Equal(t, "C#", first.Root)
	assert.Equal(t, "-7", first.Quality)
	assert.Equal(t, "G#", first.Bass)
	assert.True(t, slots[1].Chord.IsPlaceholder())
	second := slots[2].Chord
	assert.Equal(t, "Bb", second.Root)
	assert.Equal(t, "^7", second.Quality)
	assert.Equal(t, "D", second.Bass)
}

func TestAlterationsStayInQuality(t *testing.T) {
	song := strictScan(t, "C", "|C7b9 C9#11 Bb7#9b5 Z")
	slots := measures(song)[0].Slots

	assert.Equal(t, "7b9", slots[0].Chord.Quality)
	assert.Equal(t, "9#11", slots[1].Chord.Quality)
	assert.Equal(t, "Bb", slots[2].Chord.Root)
	assert.Equal(t, "7#9b5", slots[2].Chord.Quality)
}

func TestSmallAndFermata(t *testing.T) {
	song := strictScan(t, "C", "|sC7 D7 lE7 fF7 Z")
	slots := measures(song)[0].Slots

	require.Len(t, slots, 4)
	assert.True(t, slots[0].Chord.Small)
	assert.False(t, slots[1].Chord.Small, "small applies to one chord")
	assert.False(t, slots[2].Chord.Small)
	assert.True(t, slots[3].Chord.Fermata)
	assert.False(t, slots[0].Chord.Fermata)
}

func TestLargeCancelsPendingSmall(t *testing.T) {
	song := strictScan(t, "C", "|slE7 Z")
	assert.False(t, measures(song)[0].Slots[0].Chord.Small)
}

func TestSusIsQualityText(t *testing.T) {
	song := strictScan(t, "C", "|C7sus sD7sus Z")
	slots := measures(song)[0].Slots

	assert.Equal(t, "7sus", slots[0].Chord.Quality)
	assert.False(t, slots[0].Chord.Small)
	assert.Equal(t, "7sus", slots[1].Chord.Quality)
	assert.True(t, slots[1].Chord.Small)
}

func TestSections(t *testing.T) {
	song := strictScan(t, "C", "[*iC |*AD |*BE |*CF |*DG Z")
	ms := measures(song)

	var got []string
	for _, m := range ms {
		got = append(got, m.Section)
	}
	assert.Equal(t, []string{model.SectionIntro, "A", "B", "C", "D"}, got)
}

func TestInlineTextExtendsChord(t *testing.T) {
	song := strictScan(t, "C", "|C7*alt* Z")
	assert.Equal(t, "7alt", measures(song)[0].Slots[0].Chord.Quality)
}

func TestAnnotations(t *testing.T) {
	song := strictScan(t, "C", "|SC7 D7 Q |E7 <D.C. al Coda>Z")
	ms := measures(song)

	assert := assert.New(t)
	require.Len(t, ms[0].Annotations, 2)
	assert.Equal(model.SymbolSegno, ms[0].Annotations[0].Kind)
	assert.Equal(0, ms[0].Annotations[0].Slot)
	assert.Equal(2, ms[0].Annotations[1].Slot)
	assert.Len(ms[0].Slots, 3)
	assert.True(ms[0].Slots[2].Chord.IsPlaceholder())

	require.Len(t, ms[1].Annotations, 1)
	assert.Equal(model.SymbolText, ms[1].Annotations[0].Kind)
	assert.Equal("D.C. al Coda", ms[1].Annotations[0].Text)
	assert.Equal(1, ms[1].Annotations[0].Slot)
	assert.Len(ms[1].AnnotationsAt(1), 1)
}

func TestSymbols(t *testing.T) {
	song := strictScan(t, "C", "|C7 x n %Z")
	slots := measures(song)[0].Slots

	require.Len(t, slots, 4)
	assert.Equal(t, model.SymbolRepeatTwo, slots[1].Symbol.Kind)
	assert.Equal(t, model.SymbolNoChord, slots[2].Symbol.Kind)
	assert.Equal(t, "N.C.", slots[2].Symbol.String())
	assert.Equal(t, model.SymbolRepeatOne, slots[3].Symbol.Kind)
}

func TestTwoMeasureRepeatShorthand(t *testing.T) {
	song := strictScan(t, "C", "|C7|r|  |F7Z")
	ms := measures(song)

	assert := assert.New(t)
	require.Len(t, ms, 4)
	assert.Equal(model.SymbolRepeatTwo, ms[1].Slots[0].Symbol.Kind)
	assert.Len(ms[1].Slots, 1)
	assert.False(ms[2].Empty)
	assert.Len(ms[2].Slots, 2, "spaces after the skipped barline land in the spanned measure")
	assert.Equal("F7", ms[3].Slots[0].Chord.String())
}

func TestDoubledBarlinesAdjustBoundaries(t *testing.T) {
	song := strictScan(t, "C", "|C7 ][D7 |}E7 Z")
	ms := measures(song)

	assert := assert.New(t)
	require.Len(t, ms, 3)
	assert.Equal(model.BarlineDouble, ms[0].StopBarline)
	assert.Equal(model.BarlineDouble, ms[1].StartBarline)
	assert.Equal(model.BarlineRepeat, ms[1].StopBarline)
	assert.Equal("E7", ms[2].Slots[0].Chord.String())
}

func TestBodyWithoutLeadingBarline(t *testing.T) {
	song := strictScan(t, "F", "T44F7 Z")
	m := measures(song)[0]

	assert.Equal(t, &model.TimeSignature{Beats: 4, Unit: 4}, m.Time)
	assert.NotNil(t, m.Key)
	assert.Equal(t, model.BarlineSingle, m.StartBarline)
}

func TestEmptyMeasures(t *testing.T) {
	song := strictScan(t, "C", "|C7|]Z")
	ms := measures(song)

	require.Len(t, ms, 2)
	assert.False(t, ms[0].Empty)
	assert.True(t, ms[1].Empty)
	assert.Equal(t, model.BarlineDouble, ms[0].StopBarline)
}

func TestChordRefsSurviveStaffGrowth(t *testing.T) {
	// the open chord is extended after many measures were appended
	body := strings.Repeat("|C7", 7) + "|D" + "-7b5/Ab" + "Z"
	song := strictScan(t, "C", body)
	last := song.Last().Slots[0].Chord

	assert.Equal(t, "D", last.Root)
	assert.Equal(t, "-7b5", last.Quality)
	assert.Equal(t, "Ab", last.Bass)
	assert.Equal(t, model.MeasureRef{Staff: 1, Measure: 3}, last.Measure)
}

func TestRealSong(t *testing.T) {
	body := "{*AT44A-7   |A-^7   |A-7   |A-6   |B-7   |C9#11   |B-7   |E7   ||A-7   |A-^7   |A-7   |A-6   " +
		"|B^7   |C#-7 F#7 |B^7   |A-7   |D7   |G^7   |B-7 E7 |A-7   |D7  Q |N1G6   |E7   }N2G6   |Bb-7 Eb7 ]" +
		"*BAb^7   |Bb-7 Eb7 |Ab^7   |C-7 F7 |Bb-7   |Eb7   |Ab^7   |C-7 F7 |Bb^7   |C-7 F7 |Bb^7   | x  " +
		"|G-7   |C7   |A-7 D7 |B-7 <D.C. al Coda>E7 ]            [QG6   |B-7 E7 Z"
	song := strictScan(t, "G", body)

	assert := assert.New(t)
	first := song.Staffs[0].Measures[0]
	assert.Equal("A", first.Section)
	assert.Equal(model.BarlineRepeat, first.StartBarline)
	assert.Equal(&model.TimeSignature{Beats: 4, Unit: 4}, first.Time)
	assert.Equal(model.KeySignature{Letter: "G"}, *first.Key)
	assert.Equal(model.BarlineFinal, song.Last().StopBarline)

	var sections, endings []string
	song.Each(func(_ model.MeasureRef, m *model.Measure) {
		if m.Section != "" {
			sections = append(sections, m.Section)
		}
		if m.Ending != "" {
			endings = append(endings, m.Ending)
		}
	})
	assert.Equal([]string{"A", "B"}, sections)
	assert.Equal([]string{"1", "2"}, endings)
}

func TestScannerIsReusable(t *testing.T) {
	s := New(Options{Strict: true})
	done := make(chan *model.Song, 8)
	for i := 0; i < 8; i++ {
		go func(i int) {
			song, _, err := s.Scan(Header{Key: "C"}, fmt.Sprintf("|C%d Z", i+1))
			if err != nil {
				done <- nil
				return
			}
			done <- song
		}(i)
	}
	for i := 0; i < 8; i++ {
		song := <-done
		require.NotNil(t, song)
		assert.Len(t, song.Last().Slots, 1)
	}
}
