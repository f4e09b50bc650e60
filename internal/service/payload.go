package service

import (
    "bytes"
    "encoding/json"
    "math"
    "strconv"
    "strings"
)

// ImportRequest is a validated import payload.
type ImportRequest struct {
    System           string
    TalkGroup        int64
    StartTime        float64 // epoch seconds
    StopTime         float64 // epoch seconds
    AudioFilename    string
    AudioFileURLPath string
    AudioFileType    string
    PlayLength       float64 // seconds; 0 means compute from start/stop
    HasAudio         bool
    Emergency        bool
    Freq             *int64
    Units            []int64 // unit decimal ids in recorder order, deduplicated
}

// ParseImportRequest decodes and validates a recorder payload.  Numbers
// may arrive as JSON numbers or numeric strings, since recorder upload
// scripts send both.  Every problem is reported, keyed by field name.
func ParseImportRequest(body []byte) (ImportRequest, error) {
    verr := &ValidationError{}
    var raw map[string]json.RawMessage
    dec := json.NewDecoder(bytes.NewReader(body))
    dec.UseNumber()
    if err := dec.Decode(&raw); err != nil || raw == nil {
        verr.add("non_field_errors", "body must be a JSON object")
        return ImportRequest{}, verr
    }

    req := ImportRequest{HasAudio: true, AudioFileType: "mp3", AudioFileURLPath: "/"}

    if s, ok := stringField(raw, "system", verr, true); ok {
        if strings.TrimSpace(s) == "" {
            verr.add("system", "this field may not be blank")
        }
        req.System = strings.TrimSpace(s)
    }
    if n, ok := intField(raw, "talkgroup", verr, true); ok {
        if n < 1 {
            verr.add("talkgroup", "must be a positive integer")
        }
        req.TalkGroup = n
    }
    start, okStart := floatField(raw, "start_time", verr, true)
    stop, okStop := floatField(raw, "stop_time", verr, true)
    if okStart {
        if start <= 0 {
            verr.add("start_time", "must be a positive epoch timestamp")
        }
        req.StartTime = start
    }
    if okStop {
        req.StopTime = stop
        if okStart && stop < start {
            verr.add("stop_time", "must not be before start_time")
        }
    }
    if s, ok := stringField(raw, "audio_filename", verr, true); ok {
        if strings.TrimSpace(s) == "" {
            verr.add("audio_filename", "this field may not be blank")
        }
        req.AudioFilename = strings.TrimSpace(s)
    }
    if s, ok := stringField(raw, "audio_file_url_path", verr, false); ok {
        req.AudioFileURLPath = s
    }
    if s, ok := stringField(raw, "audio_file_type", verr, false); ok {
        req.AudioFileType = s
    }
    if f, ok := floatField(raw, "audio_file_play_length", verr, false); ok {
        if f < 0 {
            verr.add("audio_file_play_length", "must not be negative")
        }
        req.PlayLength = f
    }
    if b, ok := boolField(raw, "has_audio", verr); ok {
        req.HasAudio = b
    }
    if b, ok := boolField(raw, "emergency", verr); ok {
        req.Emergency = b
    }
    if n, ok := intField(raw, "freq", verr, false); ok {
        req.Freq = &n
    }
    req.Units = unitList(raw, verr)

    if !verr.empty() {
        return ImportRequest{}, verr
    }
    return req, nil
}

func present(raw map[string]json.RawMessage, key string) (json.RawMessage, bool) {
    v, ok := raw[key]
    if !ok || string(v) == "null" {
        return nil, false
    }
    return v, true
}

func stringField(raw map[string]json.RawMessage, key string, verr *ValidationError, required bool) (string, bool) {
    v, ok := present(raw, key)
    if !ok {
        if required {
            verr.add(key, "this field is required")
        }
        return "", false
    }
    var s string
    if err := json.Unmarshal(v, &s); err != nil {
        verr.add(key, "must be a string")
        return "", false
    }
    return s, true
}

// number accepts a JSON number or a string holding one.
func number(v json.RawMessage) (string, bool) {
    var n json.Number
    if err := json.Unmarshal(v, &n); err == nil {
        return n.String(), true
    }
    var s string
    if err := json.Unmarshal(v, &s); err == nil {
        s = strings.TrimSpace(s)
        return s, s != ""
    }
    return "", false
}

func floatField(raw map[string]json.RawMessage, key string, verr *ValidationError, required bool) (float64, bool) {
    v, ok := present(raw, key)
    if !ok {
        if required {
            verr.add(key, "this field is required")
        }
        return 0, false
    }
    s, ok := number(v)
    if !ok {
        verr.add(key, "must be a number")
        return 0, false
    }
    f, err := strconv.ParseFloat(s, 64)
    if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
        verr.add(key, "must be a number")
        return 0, false
    }
    return f, true
}

func intField(raw map[string]json.RawMessage, key string, verr *ValidationError, required bool) (int64, bool) {
    v, ok := present(raw, key)
    if !ok {
        if required {
            verr.add(key, "this field is required")
        }
        return 0, false
    }
    s, ok := number(v)
    if !ok {
        verr.add(key, "must be an integer")
        return 0, false
    }
    n, err := strconv.ParseInt(s, 10, 64)
    if err != nil {
        // recorders sometimes send 851012500.0
        f, ferr := strconv.ParseFloat(s, 64)
        // float64(MaxInt64) rounds up to 2^63, which int64 cannot hold
        if ferr != nil || f != math.Trunc(f) || f >= math.MaxInt64 || f < math.MinInt64 {
            verr.add(key, "must be an integer")
            return 0, false
        }
        n = int64(f)
    }
    return n, true
}

func boolField(raw map[string]json.RawMessage, key string, verr *ValidationError) (bool, bool) {
    v, ok := present(raw, key)
    if !ok {
        return false, false
    }
    var b bool
    if err := json.Unmarshal(v, &b); err == nil {
        return b, true
    }
    if s, ok := number(v); ok {
        switch strings.ToLower(s) {
        case "1", "true", "yes":
            return true, true
        case "0", "false", "no":
            return false, true
        }
    }
    var s string
    if err := json.Unmarshal(v, &s); err == nil {
        switch strings.ToLower(strings.TrimSpace(s)) {
        case "true", "yes":
            return true, true
        case "false", "no", "":
            return false, true
        }
    }
    verr.add(key, "must be a boolean")
    return false, false
}

// unitList reads srcList.  Entries with src 0 or without src are skipped,
// and a unit heard several times keeps its first position.
func unitList(raw map[string]json.RawMessage, verr *ValidationError) []int64 {
    v, ok := present(raw, "srcList")
    if !ok {
        return nil
    }
    var items []map[string]json.RawMessage
    if err := json.Unmarshal(v, &items); err != nil {
        verr.add("srcList", "must be a list of {\"src\": <unit id>} objects")
        return nil
    }
    seen := map[int64]bool{}
    var out []int64
    for i, item := range items {
        src, ok := present(item, "src")
        if !ok {
            continue
        }
        s, ok := number(src)
        id, err := strconv.ParseInt(s, 10, 64)
        if !ok || err != nil || id < 0 {
            verr.add("srcList", "item "+strconv.Itoa(i)+": src must be a non-negative integer")
            continue
        }
        if id == 0 || seen[id] {
            continue
        }
        seen[id] = true
        out = append(out, id)
    }
    return out
}
