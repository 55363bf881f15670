package param

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const driveDoc = `{"ui":[{"type":"vgroup","label":"FX","items":[{"type":"hslider","label":"drive","index":0,"min":0,"max":100,"init":50}]}]}`

func TestParseMetadataDrive(t *testing.T) {
	md, err := ParseMetadata([]byte(driveDoc), nil)
	require.NoError(t, err)
	require.Len(t, md.Descriptors, 1)

	d := md.Descriptors[0]
	require.Equal(t, "drive", d.Label)
	require.Equal(t, Continuous, d.Kind)
	require.Equal(t, 0.0, d.Min)
	require.Equal(t, 100.0, d.Max)
	require.Equal(t, 50.0, d.Init)
	require.Equal(t, 0, d.Index)
}

func TestParseMetadataLeafCount(t *testing.T) {
	tests := []struct {
		name   string
		doc    string
		leaves int
	}{
		{
			name:   "flat",
			doc:    `{"ui":[{"type":"hslider","label":"a","index":0},{"type":"checkbox","label":"b","index":4}]}`,
			leaves: 2,
		},
		{
			name: "nested groups",
			doc: `{"ui":[{"type":"vgroup","label":"top","items":[` +
				`{"type":"hgroup","label":"row","items":[` +
				`{"type":"vslider","label":"a","index":0},` +
				`{"type":"tgroup","label":"tabs","items":[{"type":"nentry","label":"b","index":4}]}]},` +
				`{"type":"button","label":"c","index":8}]}]}`,
			leaves: 3,
		},
		{
			name:   "empty group",
			doc:    `{"ui":[{"type":"vgroup","label":"top","items":[]}]}`,
			leaves: 0,
		},
		{
			name:   "bargraph is not a control",
			doc:    `{"ui":[{"type":"vgroup","label":"top","items":[{"type":"hbargraph","label":"meter","index":12},{"type":"hslider","label":"a","index":0}]}]}`,
			leaves: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := ParseMetadata([]byte(tt.doc), nil)
			require.NoError(t, err)
			require.Len(t, md.Descriptors, tt.leaves)

			for _, d := range md.Descriptors {
				require.NotContains(t, []string{"top", "row", "tabs"}, d.Label)
			}
		})
	}
}

func TestParseMetadataKinds(t *testing.T) {
	doc := `{"ui":[{"type":"vgroup","label":"g","items":[` +
		`{"type":"checkbox","label":"bypass","index":0},` +
		`{"type":"hslider","label":"tone","index":4,"min":"-1","max":"1","init":"0.5","step":"0.01"}]}]}`

	md, err := ParseMetadata([]byte(doc), nil)
	require.NoError(t, err)
	require.Len(t, md.Descriptors, 2)

	require.Equal(t, Boolean, md.Descriptors[0].Kind)
	require.Equal(t, 0.0, md.Descriptors[0].Min)
	require.Equal(t, 1.0, md.Descriptors[0].Max)
	require.Equal(t, 0.0, md.Descriptors[0].Init)

	tone := md.Descriptors[1]
	require.Equal(t, Continuous, tone.Kind)
	require.Equal(t, -1.0, tone.Min)
	require.Equal(t, 1.0, tone.Max)
	require.Equal(t, 0.5, tone.Init)
	require.Equal(t, 0.01, tone.Step)
	require.Equal(t, 4, tone.Index)
}

func TestParseMetadataTopLevel(t *testing.T) {
	doc := `{"name":"ts9","size":"88","inputs":1,"outputs":2,"ui":[{"type":"hslider","label":"a","index":0}]}` + "\x00\x00garbage"

	md, err := ParseMetadata([]byte(doc), nil)
	require.NoError(t, err)
	require.Equal(t, "ts9", md.Name)
	require.Equal(t, 88, md.Size)
	require.Equal(t, 1, md.Inputs)
	require.Equal(t, 2, md.Outputs)
}

func TestParseMetadataDegraded(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "array", doc: `[1,2,3]`},
		{name: "empty", doc: ``},
		{name: "nul only", doc: "\x00{}"},
		{name: "no ui", doc: `{"name":"x"}`},
		{name: "empty ui", doc: `{"ui":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md, err := ParseMetadata([]byte(tt.doc), nil)
			require.ErrorIs(t, err, ErrNoControls)
			require.ErrorIs(t, err, ErrMetadata)
			require.Empty(t, md.Descriptors)
		})
	}
}

func TestParseMetadataSyntaxError(t *testing.T) {
	_, err := ParseMetadata([]byte(`{"ui":[`), nil)
	require.ErrorIs(t, err, ErrMetadata)
	require.NotErrorIs(t, err, ErrNoControls)
}

func TestParseMetadataMissingIndex(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	doc := `{"ui":[{"type":"vgroup","label":"g","items":[{"type":"hslider","label":"lost"},{"type":"hslider","label":"kept","index":0}]}]}`
	md, err := ParseMetadata([]byte(doc), zap.New(core))
	require.NoError(t, err)
	require.Len(t, md.Descriptors, 1)
	require.Equal(t, "kept", md.Descriptors[0].Label)

	warnings := logs.FilterMessage("control has no index").All()
	require.Len(t, warnings, 1)
	require.Equal(t, "lost", warnings[0].ContextMap()["label"])
}

func TestParseMetadataSwapsRange(t *testing.T) {
	doc := `{"ui":[{"type":"hslider","label":"a","index":0,"min":10,"max":-10,"init":50}]}`

	md, err := ParseMetadata([]byte(doc), nil)
	require.NoError(t, err)

	d := md.Descriptors[0]
	require.Equal(t, -10.0, d.Min)
	require.Equal(t, 10.0, d.Max)
	require.Equal(t, 10.0, d.Init)
}
