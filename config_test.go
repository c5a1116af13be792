package vellum

import "testing"

func TestConfigWithDefaultsFillsZeroValues(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.BufferPageSize != defaultBufferPageSize {
		t.Errorf("BufferPageSize = %d, want %d", cfg.BufferPageSize, defaultBufferPageSize)
	}
	if cfg.MinSearchIndexSize != defaultMinSearchIndexSize {
		t.Errorf("MinSearchIndexSize = %d, want %d", cfg.MinSearchIndexSize, defaultMinSearchIndexSize)
	}
	if cfg.MaxSearchSubstringLength != defaultMaxSearchSubstringLen {
		t.Errorf("MaxSearchSubstringLength = %d, want %d", cfg.MaxSearchSubstringLength, defaultMaxSearchSubstringLen)
	}
	if cfg.ExpectedInsertions != defaultExpectedInsertions {
		t.Errorf("ExpectedInsertions = %d, want %d", cfg.ExpectedInsertions, defaultExpectedInsertions)
	}
	if cfg.MmapWriteUpperLimit != defaultMmapWriteUpperLimit {
		t.Errorf("MmapWriteUpperLimit = %d, want %d", cfg.MmapWriteUpperLimit, defaultMmapWriteUpperLimit)
	}
	if cfg.HashAlgorithm != HashXXHash3 {
		t.Errorf("HashAlgorithm = %d, want %d", cfg.HashAlgorithm, HashXXHash3)
	}
	if len(cfg.Stopwords) != len(defaultStopwords) {
		t.Errorf("Stopwords len = %d, want %d", len(cfg.Stopwords), len(defaultStopwords))
	}
}

func TestConfigWithDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{BufferPageSize: 1234, HashAlgorithm: HashBlake2b}.withDefaults()
	if cfg.BufferPageSize != 1234 {
		t.Errorf("explicit BufferPageSize was overwritten: %d", cfg.BufferPageSize)
	}
	if cfg.HashAlgorithm != HashBlake2b {
		t.Errorf("explicit HashAlgorithm was overwritten: %d", cfg.HashAlgorithm)
	}
}

func TestConfigStopwordSet(t *testing.T) {
	cfg := Config{Stopwords: []string{"the", "a"}}.withDefaults()
	set := cfg.stopwordSet()
	if !set["the"] || !set["a"] {
		t.Errorf("stopwordSet() = %v, want {the,a}", set)
	}
	if set["dog"] {
		t.Error("stopwordSet() should not contain words that weren't listed")
	}
}
