package model

import "time"

// Transmission is one recorded radio transmission.  It is written once by
// ingestion and never updated.  Slug is the random public identifier used in
// every URL and API response; ID stays internal.
//
// TalkGroupDecID, TalkGroupName, SystemName and Units are denormalized
// copies taken at import time so list views need no joins.  They are not
// refreshed when the referenced rows are renamed later.
type Transmission struct {
    ID               uint64         // transmissions.id
    Slug             string         // transmissions.slug (uuid, unique)
    StartDatetime    time.Time      // transmissions.start_datetime
    EndDatetime      *time.Time     // transmissions.end_datetime (nullable)
    PlayLength       float64        // transmissions.play_length (seconds)
    AudioFile        string         // transmissions.audio_file
    AudioFileURLPath string         // transmissions.audio_file_url_path
    AudioFileType    string         // transmissions.audio_file_type
    HasAudio         bool           // transmissions.has_audio
    SystemID         uint64         // transmissions.system_id
    TalkGroupID      uint64         // transmissions.talkgroup_id
    TalkGroupDecID   int64          // transmissions.talkgroup_dec_id
    TalkGroupName    string         // transmissions.talkgroup_name
    SystemName       string         // transmissions.system_name
    Units            []UnitSnapshot // transmissions.units_json
    Freq             *int64         // transmissions.freq in Hz (nullable)
    Emergency        bool           // transmissions.emergency
    CreatedAt        time.Time      // transmissions.created_at

    TalkGroupSlug string // talkgroups.slug (joined on reads, set by ingestion)
}

// UnitSnapshot is the denormalized form of a unit stored on a transmission.
type UnitSnapshot struct {
    ID    uint64 `json:"id"`
    DecID int64  `json:"dec_id"`
    Name  string `json:"name"`
}

// TransmissionUnit is the normalized join between a transmission and the
// units heard on it.  Order preserves the recorder's source list order.
type TransmissionUnit struct {
    ID             uint64 // transmission_units.id
    TransmissionID uint64 // transmission_units.transmission_id
    UnitID         uint64 // transmission_units.unit_id
    Order          int    // transmission_units.ord
}

// TransmissionArchive mirrors Transmission with plain integer references so
// archived rows survive deletion of the systems and talkgroups they name.
type TransmissionArchive struct {
    ID             uint64         // transmission_archive.id
    OriginalID     uint64         // transmission_archive.original_id
    Slug           string         // transmission_archive.slug
    StartDatetime  time.Time      // transmission_archive.start_datetime
    EndDatetime    *time.Time     // transmission_archive.end_datetime
    PlayLength     float64        // transmission_archive.play_length
    AudioFile      string         // transmission_archive.audio_file
    SystemID       uint64         // transmission_archive.system_id
    SystemName     string         // transmission_archive.system_name
    TalkGroupID    uint64         // transmission_archive.talkgroup_id
    TalkGroupDecID int64          // transmission_archive.talkgroup_dec_id
    TalkGroupName  string         // transmission_archive.talkgroup_name
    Units          []UnitSnapshot // transmission_archive.units_json
    Freq           *int64         // transmission_archive.freq
    Emergency      bool           // transmission_archive.emergency
    CreatedAt      time.Time      // transmission_archive.created_at
    ArchivedAt     time.Time      // transmission_archive.archived_at
}

// Transcription is the text of one transmission's audio.
type Transcription struct {
    ID             uint64    // transcriptions.id
    TransmissionID uint64    // transcriptions.transmission_id (unique)
    Text           string    // transcriptions.text
    IsAutomated    bool      // transcriptions.is_automated
    Confidence     *float64  // transcriptions.confidence (0-1, nullable)
    Language       string    // transcriptions.language
    CreatedBy      *uint64   // transcriptions.created_by (nullable)
    CreatedAt      time.Time // transcriptions.created_at
    UpdatedAt      time.Time // transcriptions.updated_at
}
