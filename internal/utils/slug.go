package utils

import (
    "strings"
    "unicode"

    "golang.org/x/text/runes"
    "golang.org/x/text/transform"
    "golang.org/x/text/unicode/norm"
)

// stripMarks decomposes accented characters and drops the combining marks,
// so "Café" folds to "Cafe".
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify lowercases s, folds it to ASCII, drops everything but letters,
// digits, underscores, hyphens and spaces, then joins the words with single
// hyphens.  Leading and trailing hyphens and underscores are trimmed.
// "Metro PD Disp" becomes "metro-pd-disp".
func Slugify(s string) string {
    folded, _, err := transform.String(stripMarks, s)
    if err != nil {
        folded = s
    }

    var b strings.Builder
    pendingSep := false
    for _, r := range strings.ToLower(folded) {
        switch {
        case r > unicode.MaxASCII:
            continue
        case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
            if pendingSep && b.Len() > 0 {
                b.WriteByte('-')
            }
            pendingSep = false
            b.WriteRune(r)
        case r == '-' || unicode.IsSpace(r):
            pendingSep = true
        }
    }
    return strings.Trim(b.String(), "-_")
}

// JoinSlug prefixes slug with parent, used to keep per-system slugs unique
// across systems.  Empty parts are skipped.
func JoinSlug(parent, slug string) string {
    switch {
    case parent == "":
        return slug
    case slug == "":
        return parent
    }
    return parent + "-" + slug
}
