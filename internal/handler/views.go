package handler

import (
    "strings"
    "time"

    "github.com/iliyamo/trunk-player/internal/model"
    "github.com/iliyamo/trunk-player/internal/service"
)

// Response shapes.  Internal ids are exposed for catalog entities, which
// recorders and import tooling key on; transmissions are only ever
// identified by slug.

type systemView struct {
    ID          uint64    `json:"id"`
    Name        string    `json:"name"`
    Description string    `json:"description"`
    Slug        string    `json:"slug"`
    CreatedAt   time.Time `json:"created_at"`
}

func newSystemView(s model.System) systemView {
    return systemView{ID: s.ID, Name: s.Name, Description: s.Description, Slug: s.Slug, CreatedAt: s.CreatedAt}
}

type talkGroupView struct {
    ID               uint64     `json:"id"`
    DecID            int64      `json:"dec_id"`
    AlphaTag         string     `json:"alpha_tag"`
    CommonName       string     `json:"common_name"`
    Description      string     `json:"description"`
    Slug             string     `json:"slug"`
    System           uint64     `json:"system"`
    SystemName       string     `json:"system_name"`
    IsPublic         bool       `json:"is_public"`
    LastTransmission *time.Time `json:"last_transmission"`
    RecentUsage      int        `json:"recent_usage"`
}

func newTalkGroupView(t model.TalkGroup) talkGroupView {
    return talkGroupView{
        ID: t.ID, DecID: t.DecID, AlphaTag: t.AlphaTag, CommonName: t.CommonName, Description: t.Description,
        Slug: t.Slug, System: t.SystemID, SystemName: t.SystemName, IsPublic: t.IsPublic,
        LastTransmission: t.LastTransmission, RecentUsage: t.RecentUsage,
    }
}

type unitView struct {
    ID          uint64 `json:"id"`
    DecID       int64  `json:"dec_id"`
    Description string `json:"description"`
    UnitType    string `json:"unit_type"`
    UnitNumber  string `json:"unit_number"`
    Slug        string `json:"slug"`
    System      uint64 `json:"system"`
    SystemName  string `json:"system_name"`
}

func newUnitView(u model.Unit) unitView {
    return unitView{
        ID: u.ID, DecID: u.DecID, Description: u.Description, UnitType: string(u.UnitType),
        UnitNumber: u.UnitNumber, Slug: u.Slug, System: u.SystemID, SystemName: u.SystemName,
    }
}

type transcriptionView struct {
    Text        string    `json:"text"`
    IsAutomated bool      `json:"is_automated"`
    Confidence  *float64  `json:"confidence"`
    Language    string    `json:"language"`
    CreatedAt   time.Time `json:"created_at"`
    UpdatedAt   time.Time `json:"updated_at"`
}

func newTranscriptionView(t *model.Transcription) *transcriptionView {
    if t == nil {
        return nil
    }
    return &transcriptionView{
        Text: t.Text, IsAutomated: t.IsAutomated, Confidence: t.Confidence, Language: t.Language,
        CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
    }
}

// transmissionView is the serialized transmission.  AudioFile and AudioURL
// are null when the start time lies beyond the principal's history window.
type transmissionView struct {
    Slug               string               `json:"slug"`
    StartDatetime      time.Time            `json:"start_datetime"`
    LocalStartDatetime string               `json:"local_start_datetime"`
    EndDatetime        *time.Time           `json:"end_datetime"`
    PlayLength         float64              `json:"play_length"`
    AudioFile          *string              `json:"audio_file"`
    AudioURL           *string              `json:"audio_url"`
    AudioFileType      string               `json:"audio_file_type"`
    HasAudio           bool                 `json:"has_audio"`
    SystemName         string               `json:"system_name"`
    TalkGroup          int64                `json:"talkgroup"`
    TalkGroupName      string               `json:"tg_name"`
    TalkGroupSlug      string               `json:"talkgroup_slug,omitempty"`
    Freq               *int64               `json:"freq"`
    FreqMHz            *float64             `json:"freq_mhz"`
    Units              []model.UnitSnapshot `json:"units"`
    Emergency          bool                 `json:"emergency"`
    Archived           bool                 `json:"archived,omitempty"`
    Transcription      *transcriptionView   `json:"transcription,omitempty"`
}

// transmissionView serializes t for vis at now.
func (h *API) transmissionView(t model.Transmission, vis service.Visibility, now time.Time) transmissionView {
    v := transmissionView{
        Slug:               t.Slug,
        StartDatetime:      t.StartDatetime,
        LocalStartDatetime: t.StartDatetime.In(h.opts.Location).Format(time.RFC3339),
        EndDatetime:        t.EndDatetime,
        PlayLength:         t.PlayLength,
        AudioFileType:      t.AudioFileType,
        HasAudio:           t.HasAudio,
        SystemName:         t.SystemName,
        TalkGroup:          t.TalkGroupDecID,
        TalkGroupName:      t.TalkGroupName,
        TalkGroupSlug:      t.TalkGroupSlug,
        Freq:               t.Freq,
        Units:              t.Units,
        Emergency:          t.Emergency,
    }
    if v.Units == nil {
        v.Units = []model.UnitSnapshot{}
    }
    if t.Freq != nil {
        mhz := float64(*t.Freq) / 1e6
        v.FreqMHz = &mhz
    }
    if !vis.AudioWithheld(t.StartDatetime, now) {
        file := t.AudioFile
        url := audioURL(h.opts.AudioURLBase, t.AudioFileURLPath, t.AudioFile)
        v.AudioFile, v.AudioURL = &file, &url
    }
    return v
}

// archivedView serializes a row from transmission_archive.
func (h *API) archivedView(a model.TransmissionArchive, vis service.Visibility, now time.Time) transmissionView {
    v := h.transmissionView(model.Transmission{
        Slug: a.Slug, StartDatetime: a.StartDatetime, EndDatetime: a.EndDatetime, PlayLength: a.PlayLength,
        AudioFile: a.AudioFile, HasAudio: a.AudioFile != "", SystemName: a.SystemName,
        TalkGroupDecID: a.TalkGroupDecID, TalkGroupName: a.TalkGroupName, Units: a.Units, Freq: a.Freq,
        Emergency: a.Emergency,
    }, vis, now)
    v.Archived = true
    return v
}

// audioURL joins base, the recorder's url path and the file name with
// single slashes.
func audioURL(base, path, file string) string {
    var b strings.Builder
    b.WriteString(strings.TrimRight(base, "/"))
    b.WriteByte('/')
    if p := strings.Trim(path, "/"); p != "" {
        b.WriteString(p)
        b.WriteByte('/')
    }
    b.WriteString(strings.TrimLeft(file, "/"))
    return b.String()
}

type scanListView struct {
    ID          uint64               `json:"id"`
    Name        string               `json:"name"`
    Slug        string               `json:"slug"`
    Description string               `json:"description"`
    Public      bool                 `json:"public"`
    CreatedBy   uint64               `json:"created_by"`
    TalkGroups  []model.TalkGroupRef `json:"talkgroups,omitempty"`
    CreatedAt   time.Time            `json:"created_at"`
}

func newScanListView(s model.ScanList) scanListView {
    return scanListView{
        ID: s.ID, Name: s.Name, Slug: s.Slug, Description: s.Description, Public: s.Public,
        CreatedBy: s.CreatedBy, TalkGroups: s.TalkGroups, CreatedAt: s.CreatedAt,
    }
}

type incidentView struct {
    ID            uint64             `json:"id"`
    Name          string             `json:"name"`
    Slug          string             `json:"slug"`
    Description   string             `json:"description"`
    Public        bool               `json:"public"`
    CreatedBy     *uint64            `json:"created_by"`
    CreatedAt     time.Time          `json:"created_at"`
    Transmissions []transmissionView `json:"transmissions,omitempty"`
}

func newIncidentView(i model.Incident) incidentView {
    return incidentView{
        ID: i.ID, Name: i.Name, Slug: i.Slug, Description: i.Description, Public: i.Public,
        CreatedBy: i.CreatedBy, CreatedAt: i.CreatedAt,
    }
}

type planView struct {
    ID          uint64 `json:"id"`
    Name        string `json:"name"`
    Description string `json:"description"`
    History     int    `json:"history"`
    IsDefault   bool   `json:"is_default"`
}

func newPlanView(p model.Plan) planView {
    return planView{ID: p.ID, Name: p.Name, Description: p.Description, History: p.History, IsDefault: p.IsDefault}
}
