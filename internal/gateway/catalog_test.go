package gateway

import (
	"errors"
	"sync"
	"testing"
)

func TestCatalog_AddVideo_FindVideo(t *testing.T) {
	c := NewCatalog()
	c.AddVideo("v1", []int{360, 720})

	t.Run("found", func(t *testing.T) {
		v, err := c.FindVideo("v1")
		if err != nil {
			t.Fatalf("FindVideo: %v", err)
		}
		if v.ID != "v1" || len(v.Bitrates) != 2 || v.Bitrates[0] != 360 || v.Bitrates[1] != 720 {
			t.Errorf("unexpected video: %+v", v)
		}
	})

	t.Run("missing", func(t *testing.T) {
		_, err := c.FindVideo("missing")
		if !errors.Is(err, ErrVideoNotFound) {
			t.Errorf("expected ErrVideoNotFound, got %v", err)
		}
	})

	t.Run("last_write_wins", func(t *testing.T) {
		c.AddVideo("v1", []int{1080})
		v, _ := c.FindVideo("v1")
		if len(v.Bitrates) != 1 || v.Bitrates[0] != 1080 {
			t.Errorf("expected replaced ladder, got %v", v.Bitrates)
		}
		if c.Len() != 1 {
			t.Errorf("replace must not add an entry, len %d", c.Len())
		}
	})
}

func TestCatalog_copies_ladders(t *testing.T) {
	c := NewCatalog()
	ladder := []int{360, 720}
	c.AddVideo("v1", ladder)
	ladder[0] = 1

	v, _ := c.FindVideo("v1")
	if v.Bitrates[0] != 360 {
		t.Errorf("caller mutation leaked into catalog: %v", v.Bitrates)
	}

	v.Bitrates[1] = 2
	again, _ := c.FindVideo("v1")
	if again.Bitrates[1] != 720 {
		t.Errorf("returned slice aliases catalog storage: %v", again.Bitrates)
	}
}

func TestCatalog_IDs_sorted(t *testing.T) {
	c := NewCatalog()
	for _, id := range []VideoID{"v3", "v1", "v2"} {
		c.AddVideo(id, []int{360})
	}
	ids := c.IDs()
	if len(ids) != 3 || ids[0] != "v1" || ids[1] != "v2" || ids[2] != "v3" {
		t.Errorf("expected sorted ids, got %v", ids)
	}
}

func TestCatalog_concurrent_readers(t *testing.T) {
	c := NewCatalog()
	c.AddVideo("v1", []int{360, 720, 1080})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%8 == 0 {
				c.AddVideo("v2", []int{480})
				return
			}
			if _, err := c.FindVideo("v1"); err != nil {
				t.Errorf("FindVideo: %v", err)
			}
		}(i)
	}
	wg.Wait()
}
