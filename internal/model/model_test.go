package model

import (
    "testing"

    "github.com/stretchr/testify/assert"
)

func TestDisplayNames(t *testing.T) {
    assert.Equal(t, "TG 1000", TalkGroup{DecID: 1000}.DisplayName())
    assert.Equal(t, "PDDisp", TalkGroup{DecID: 1000, AlphaTag: "PDDisp"}.DisplayName())
    assert.Equal(t, "Police Dispatch", TalkGroup{AlphaTag: "PDDisp", CommonName: "Police Dispatch"}.DisplayName())

    assert.Equal(t, "Unit 7", Unit{DecID: 7}.DisplayName())
    assert.Equal(t, "E1", Unit{DecID: 7, UnitNumber: "E1"}.DisplayName())
    assert.Equal(t, UnitSnapshot{ID: 3, DecID: 7, Name: "Engine 1"},
        Unit{ID: 3, DecID: 7, Description: "Engine 1", UnitNumber: "E1"}.Snapshot())
}

func TestUnitTypeValid(t *testing.T) {
    for _, ut := range []UnitType{UnitMobile, UnitPortable, UnitBase, UnitDispatch} {
        assert.True(t, ut.Valid())
    }
    assert.False(t, UnitType("X").Valid())
}

func TestChannels(t *testing.T) {
    assert.Equal(t, "tg-metro-pddisp", TalkGroupChannel("metro-pddisp"))
    assert.Equal(t, "scan-fire-ops", ScanListChannel("fire-ops"))
    assert.True(t, ValidChannelKind("inc"))
    assert.False(t, ValidChannelKind("default"))
    assert.True(t, ValidChannelLabel("metro_1-a"))
    assert.False(t, ValidChannelLabel("metro pd"))
    assert.False(t, ValidChannelLabel(""))
}

func TestPrincipal(t *testing.T) {
    assert.Nil(t, Anonymous().UserIDPtr())
    p := UserPrincipal(9, "user")
    if assert.NotNil(t, p.UserIDPtr()) {
        assert.Equal(t, uint64(9), *p.UserIDPtr())
    }
    assert.Equal(t, 0, Profile{}.HistoryLimit())
    assert.Equal(t, 60, Profile{Plan: &Plan{History: 60}}.HistoryLimit())
}
