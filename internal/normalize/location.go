package normalize

import (
	"hash/fnv"
	"regexp"
	"strings"

	"github.com/alfredjeanlab/campusevents/internal/model"
)

// JitterRange bounds the coordinate offset applied to bucket points so
// events at the same building do not stack on the map.
const JitterRange = 0.00015

type compiledBucket struct {
	bucket model.LocationBucket
	re     *regexp.Regexp
}

// Locator resolves free-text locations to map buckets.
type Locator struct {
	buckets []compiledBucket
}

// NewLocator compiles buckets in order. Buckets without keywords are
// ignored.
func NewLocator(buckets []model.LocationBucket) *Locator {
	l := &Locator{}
	for _, b := range buckets {
		var alts []string
		for _, k := range b.Keywords {
			if k = strings.TrimSpace(k); k != "" {
				alts = append(alts, regexp.QuoteMeta(k))
			}
		}
		if len(alts) == 0 || strings.TrimSpace(b.Name) == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)
		l.buckets = append(l.buckets, compiledBucket{bucket: b, re: re})
	}
	return l
}

// Resolve returns the first bucket with a keyword in location.
func (l *Locator) Resolve(location string) (model.LocationBucket, bool) {
	if l == nil || strings.TrimSpace(location) == "" {
		return model.LocationBucket{}, false
	}
	for _, cb := range l.buckets {
		if cb.re.MatchString(location) {
			return cb.bucket, true
		}
	}
	return model.LocationBucket{}, false
}

// MapLocation returns the bucket name for location, or model.MapLocationOther.
func (l *Locator) MapLocation(location string) string {
	if b, ok := l.Resolve(location); ok {
		return b.Name
	}
	return model.MapLocationOther
}

// Jitter offsets lat/lng by up to JitterRange in each axis. The offset is
// derived from seed, so the same event always lands on the same point.
func Jitter(seed string, lat, lng float64) (float64, float64) {
	h := fnv.New64a()
	h.Write([]byte(seed))
	sum := h.Sum64()
	return lat + unitOffset(uint32(sum>>32)), lng + unitOffset(uint32(sum))
}

// unitOffset maps v uniformly onto [-JitterRange, JitterRange].
func unitOffset(v uint32) float64 {
	return (float64(v)/float64(^uint32(0))*2 - 1) * JitterRange
}
