package acquisition

import (
	"testing"
	"time"

	gerrors "github.com/gedixr/gedixr/pkg/errors"
)

func TestFromFileName_DecodesDayOfYear(t *testing.T) {
	name := "/data/L2B/GEDI02_B_2019108002011_O01959_03_T03909_02_003_01_V002.h5"

	got, err := FromFileName(name)
	if err != nil {
		t.Fatalf("FromFileName failed: %v", err)
	}
	want := time.Date(2019, time.April, 18, 0, 20, 11, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestFromFileName_LeapYear(t *testing.T) {
	got, err := FromFileName("GEDI02_A_2020366235959_O1.h5")
	if err != nil {
		t.Fatalf("FromFileName failed: %v", err)
	}
	if got.Month() != time.December || got.Day() != 31 {
		t.Errorf("Expected Dec 31, got %v", got)
	}

	if _, err := FromFileName("GEDI02_A_2019366000000_O1.h5"); err == nil {
		t.Error("Expected error for day 366 in a non-leap year")
	}
}

func TestFromFileName_MissingToken(t *testing.T) {
	_, err := FromFileName("GEDI02_B_notadate.h5")
	if !gerrors.IsCode(err, gerrors.CodeInvalidAcquisition) {
		t.Errorf("Expected invalid acquisition error, got %v", err)
	}
}

func TestNewMonthRange_SwapsBounds(t *testing.T) {
	for lo := 1; lo <= 12; lo++ {
		for hi := 1; hi < lo; hi++ {
			swapped, err := NewMonthRange(lo, hi)
			if err != nil {
				t.Fatalf("NewMonthRange(%d, %d) failed: %v", lo, hi, err)
			}
			direct, _ := NewMonthRange(hi, lo)
			if swapped != direct {
				t.Fatalf("NewMonthRange(%d, %d) = %v, want %v", lo, hi, swapped, direct)
			}
			for m := 1; m <= 12; m++ {
				ts := time.Date(2021, time.Month(m), 15, 0, 0, 0, 0, time.UTC)
				if swapped.Contains(ts) != direct.Contains(ts) {
					t.Errorf("range (%d,%d) disagrees with (%d,%d) for month %d", lo, hi, hi, lo, m)
				}
			}
		}
	}
}

func TestMonthRange_ContainsIsInclusive(t *testing.T) {
	r, _ := NewMonthRange(6, 8)
	cases := map[time.Month]bool{
		time.May:       false,
		time.June:      true,
		time.July:      true,
		time.August:    true,
		time.September: false,
	}
	for m, want := range cases {
		ts := time.Date(2022, m, 1, 0, 0, 0, 0, time.UTC)
		if got := r.Contains(ts); got != want {
			t.Errorf("Contains(%s) = %v, want %v", m, got, want)
		}
	}
}

func TestNewMonthRange_RejectsOutOfRange(t *testing.T) {
	if _, err := NewMonthRange(0, 5); err == nil {
		t.Error("Expected error for month 0")
	}
	if _, err := NewMonthRange(1, 13); err == nil {
		t.Error("Expected error for month 13")
	}
}
