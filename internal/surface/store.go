package surface

import (
	"strings"

	"go.etcd.io/bbolt"

	"github.com/DockerDiscordControl/ddc/internal/db"
)

// surfaceKey builds the persistence key for one tracked surface. Keys are
// "channelID/cardKey" so a channel's surfaces group together in the bucket.
func surfaceKey(channelID, cardKey string) string {
	return channelID + "/" + cardKey
}

// loadTracked reads every persisted surface id, keyed by channel then card.
// Surviving a restart means edits keep landing on the same messages instead
// of posting duplicates.
func loadTracked(d *db.DB) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	err := d.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(db.BucketSurfaces).ForEach(func(k, v []byte) error {
			channelID, cardKey, ok := strings.Cut(string(k), "/")
			if !ok {
				return nil
			}
			if out[channelID] == nil {
				out[channelID] = make(map[string]string)
			}
			out[channelID][cardKey] = string(v)
			return nil
		})
	})
	return out, err
}

func (c *Coordinator) persistSurface(channelID, cardKey, surfaceID string) {
	if c.db == nil {
		return
	}
	c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(db.BucketSurfaces).Put([]byte(surfaceKey(channelID, cardKey)), []byte(surfaceID))
	})
}

func (c *Coordinator) forgetSurface(channelID, cardKey string) {
	if c.db == nil {
		return
	}
	c.db.Delete(db.BucketSurfaces, surfaceKey(channelID, cardKey))
}
