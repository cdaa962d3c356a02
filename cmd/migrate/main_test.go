package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/golang-migrate/migrate/v4"
)

type fakeMigrator struct {
	calls   []string
	upErr   error
	version uint
	verErr  error
	forced  int
	steps   int
}

func (f *fakeMigrator) Up() error {
	f.calls = append(f.calls, "up")
	return f.upErr
}

func (f *fakeMigrator) Down() error {
	f.calls = append(f.calls, "down")
	return nil
}

func (f *fakeMigrator) Steps(n int) error {
	f.calls = append(f.calls, "steps")
	f.steps = n
	return nil
}

func (f *fakeMigrator) Version() (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return f.version, false, f.verErr
}

func (f *fakeMigrator) Force(version int) error {
	f.calls = append(f.calls, "force")
	f.forced = version
	return nil
}

func TestRunCommands(t *testing.T) {
	tests := []struct {
		name    string
		command string
		args    []string
		fake    *fakeMigrator
		wantErr string
	}{
		{"up", "up", nil, &fakeMigrator{}, ""},
		{"up no change", "up", nil, &fakeMigrator{upErr: migrate.ErrNoChange}, ""},
		{"up failure", "up", nil, &fakeMigrator{upErr: errors.New("dirty database")}, "failed to run migrations"},
		{"down", "down", nil, &fakeMigrator{}, ""},
		{"steps", "steps", []string{"-1"}, &fakeMigrator{}, ""},
		{"steps without n", "steps", nil, &fakeMigrator{}, "requires a number"},
		{"version", "version", nil, &fakeMigrator{version: 2}, ""},
		{"version empty", "version", nil, &fakeMigrator{verErr: migrate.ErrNilVersion}, ""},
		{"force", "force", []string{"1"}, &fakeMigrator{}, ""},
		{"force bad number", "force", []string{"one"}, &fakeMigrator{}, "invalid number"},
		{"unknown", "sideways", nil, &fakeMigrator{}, "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := run(tt.fake, tt.command, tt.args)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("run() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("run() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestRunForwardsArguments(t *testing.T) {
	fake := &fakeMigrator{}
	if err := run(fake, "force", []string{"2"}); err != nil {
		t.Fatal(err)
	}
	if err := run(fake, "steps", []string{"-1"}); err != nil {
		t.Fatal(err)
	}
	if fake.forced != 2 || fake.steps != -1 {
		t.Errorf("forced = %d, steps = %d", fake.forced, fake.steps)
	}
	if strings.Join(fake.calls, ",") != "force,steps" {
		t.Errorf("calls = %v", fake.calls)
	}
}
