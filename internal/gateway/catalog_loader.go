package gateway

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the on-disk seed format:
//
//	videos:
//	  - id: v1
//	    bitrates: [360, 720, 1080]
type catalogFile struct {
	Videos []Video `yaml:"videos"`
}

// LoadCatalogYAML reads the seed file at path into c and returns the number of
// videos added. Unknown fields and invalid ladders are rejected before c is touched.
func LoadCatalogYAML(path string, c *Catalog) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read catalog file: %w", err)
	}

	var f catalogFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return 0, fmt.Errorf("decode catalog file: %w", err)
	}

	for i, v := range f.Videos {
		if err := v.Validate(); err != nil {
			return 0, fmt.Errorf("catalog entry %d: %w", i, err)
		}
	}
	for _, v := range f.Videos {
		c.AddVideo(v.ID, v.Bitrates)
	}
	return len(f.Videos), nil
}

const catalogQuery = `SELECT video_id, bitrate FROM video_bitrates ORDER BY video_id, position`

// LoadCatalogSQL reads ladders from the video_bitrates table into c and returns
// the number of videos added.
func LoadCatalogSQL(ctx context.Context, db *sql.DB, c *Catalog) (int, error) {
	rows, err := db.QueryContext(ctx, catalogQuery)
	if err != nil {
		return 0, fmt.Errorf("query video bitrates: %w", err)
	}
	defer rows.Close()

	var order []VideoID
	ladders := make(map[VideoID][]int)
	for rows.Next() {
		var id string
		var bitrate int
		if err := rows.Scan(&id, &bitrate); err != nil {
			return 0, fmt.Errorf("scan video bitrate: %w", err)
		}
		vid := VideoID(id)
		if _, seen := ladders[vid]; !seen {
			order = append(order, vid)
		}
		ladders[vid] = append(ladders[vid], bitrate)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate video bitrates: %w", err)
	}

	for _, id := range order {
		if err := (Video{ID: id, Bitrates: ladders[id]}).Validate(); err != nil {
			return 0, err
		}
	}
	for _, id := range order {
		c.AddVideo(id, ladders[id])
	}
	return len(order), nil
}
