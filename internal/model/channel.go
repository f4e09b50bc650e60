package model

import "regexp"

// Live channel kinds.  A channel id is "<kind>-<label>" where label is the
// slug of the talkgroup, scanlist, unit or incident.
const (
    ChannelTalkGroup = "tg"
    ChannelScanList  = "scan"
    ChannelUnit      = "unit"
    ChannelIncident  = "inc"

    // DefaultChannel receives every transmission.
    DefaultChannel = "default"
)

var channelLabel = regexp.MustCompile(`^[\w-]+$`)

// ValidChannelKind reports whether kind names a live channel kind.
func ValidChannelKind(kind string) bool {
    switch kind {
    case ChannelTalkGroup, ChannelScanList, ChannelUnit, ChannelIncident:
        return true
    }
    return false
}

// ValidChannelLabel reports whether label may appear in a channel id.
func ValidChannelLabel(label string) bool {
    return channelLabel.MatchString(label)
}

// ChannelID builds the channel id for kind and label.
func ChannelID(kind, label string) string {
    return kind + "-" + label
}

// TalkGroupChannel is the channel of one talkgroup.
func TalkGroupChannel(slug string) string { return ChannelID(ChannelTalkGroup, slug) }

// ScanListChannel is the channel of one scanlist.
func ScanListChannel(slug string) string { return ChannelID(ChannelScanList, slug) }
