package importer

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/playperu/packimport/internal/pack"
)

type memPacks struct {
	mu      sync.Mutex
	packs   map[string]*pack.Pack
	loads   int
	saves   int
	saveErr error
}

func newMemPacks() *memPacks {
	return &memPacks{packs: map[string]*pack.Pack{}}
}

func (m *memPacks) Load(_ context.Context, uuid string) (*pack.Pack, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	p, ok := m.packs[uuid]
	if !ok {
		return nil, pack.ErrNotFound
	}
	return p, nil
}

func (m *memPacks) Save(_ context.Context, p *pack.Pack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.packs[p.UUID]; ok {
		return pack.ErrExists
	}
	m.packs[p.UUID] = p
	return nil
}

type memFiles struct {
	mu      sync.Mutex
	data    map[pack.FileRef][]byte
	names   map[pack.FileRef]string
	calls   map[string]int
	order   []string
	deleted []pack.FileRef
	seq     int

	// Optional hooks, called outside the lock.
	before func(name string) error
	after  func(name string)
}

func newMemFiles() *memFiles {
	return &memFiles{
		data:  map[pack.FileRef][]byte{},
		names: map[pack.FileRef]string{},
		calls: map[string]int{},
	}
}

func (m *memFiles) Store(ctx context.Context, packUUID, name string, data []byte) (pack.FileRef, error) {
	if m.before != nil {
		if err := m.before(name); err != nil {
			return "", err
		}
	}
	m.mu.Lock()
	m.seq++
	ref := pack.FileRef(fmt.Sprintf("%s/%d", packUUID, m.seq))
	m.data[ref] = data
	m.names[ref] = name
	m.calls[name]++
	m.order = append(m.order, name)
	m.mu.Unlock()
	if m.after != nil {
		m.after(name)
	}
	return ref, nil
}

func (m *memFiles) Delete(_ context.Context, refs ...pack.FileRef) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range refs {
		delete(m.data, r)
		m.deleted = append(m.deleted, r)
	}
	return nil
}

func (m *memFiles) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *memFiles) stored() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

var errStoreDown = errors.New("store down")

func newTestImporter(packs PackStore, files FileStore) *Importer {
	im := New(packs, files, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{
		Limits:      DefaultLimits,
		Concurrency: 4,
	})
	im.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return im
}

type entry struct {
	name string
	body string
}

func buildArchive(t *testing.T, entries ...entry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		if err != nil {
			t.Fatalf("creating %s: %v", e.name, err)
		}
		if _, err := io.WriteString(w, e.body); err != nil {
			t.Fatalf("writing %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
	return buf.Bytes()
}

const samplePack = `<?xml version="1.0" encoding="utf-8"?>
<package name="Sample" version="4" id="pack-1" date="01.02.2024" difficulty="5" restriction="18+"
         publisher="Quiz House" logo="@logo.png" language="en"
         xmlns="http://vladimirkhil.com/ygpackage3.0.xsd">
  <tags><tag>music</tag><tag>films</tag></tags>
  <info><authors><author>Alice</author><author>Bob</author></authors></info>
  <rounds>
    <round name="First">
      <themes>
        <theme name="Animals">
          <questions>
            <question price="100">
              <scenario>
                <atom>Who is this?</atom>
                <atom type="image" time="7">@cat.jpg</atom>
                <atom type="say">Listen</atom>
                <atom type="voice" time="abc">@meow.mp3</atom>
              </scenario>
              <right><answer>Cat</answer></right>
              <wrong><answer>Dog</answer><answer>Cow</answer></wrong>
            </question>
            <question price="200">
              <type name="cat">
                <param name="theme">Felines</param>
                <param name="cost">100</param>
              </type>
              <scenario>
                <atom type="image">@cat.jpg</atom>
              </scenario>
              <right><answer>Lion</answer></right>
            </question>
            <question price="300">
              <type name="bagcat">
                <param name="cost">[10;50]/5</param>
                <param name="knows">after</param>
                <param name="self">True</param>
              </type>
              <scenario><atom>Bag</atom></scenario>
              <right><answer>Tiger</answer></right>
            </question>
            <question price="400">
              <type name="bagcat"><param name="cost">abc</param></type>
              <scenario><atom>Broken</atom></scenario>
              <right><answer>x</answer></right>
            </question>
          </questions>
        </theme>
      </themes>
    </round>
    <round name="Final">
      <themes>
        <theme name="Last">
          <questions>
            <question price="0">
              <scenario>
                <atom type="video" time="0">@missing.mp4</atom>
                <atom type="marker"/>
              </scenario>
              <right><answer>End</answer></right>
            </question>
          </questions>
        </theme>
      </themes>
    </round>
  </rounds>
</package>`

func sampleArchive(t *testing.T) []byte {
	t.Helper()
	return buildArchive(t,
		entry{"content.xml", samplePack},
		entry{"Images/logo.png", "logo-bytes"},
		entry{"Images/cat.jpg", "cat-bytes"},
		entry{"Audio/meow.mp3", "meow-bytes"},
	)
}
