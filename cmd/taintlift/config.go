package main

import (
	"encoding/hex"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/taintlift/taintlift"
)

// Config describes the initial state and code of one trace run.
type Config struct {
	Thread          uint32            `yaml:"thread"`
	Base            uint64            `yaml:"base"`
	Code            string            `yaml:"code"`
	MaxSteps        int               `yaml:"max_steps"`
	SkipUnsupported bool              `yaml:"skip_unsupported"`
	Registers       map[string]uint64 `yaml:"registers"`
	Flags           map[string]bool   `yaml:"flags"`
	Memory          []MemoryConfig    `yaml:"memory"`
	Taint           InputConfig       `yaml:"taint"`
	Symbolic        InputConfig       `yaml:"symbolic"`
}

// MemoryConfig is a block of initial memory given as hex.
type MemoryConfig struct {
	Address uint64 `yaml:"address"`
	Bytes   string `yaml:"bytes"`
}

// InputConfig lists registers and memory ranges to taint or to make symbolic.
type InputConfig struct {
	Registers []string      `yaml:"registers"`
	Memory    []RangeConfig `yaml:"memory"`
}

// RangeConfig is size bytes at address.
type RangeConfig struct {
	Address uint64 `yaml:"address"`
	Size    uint   `yaml:"size"`
}

// ReadConfig reads a YAML config from path.
func ReadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return ParseConfig(buf)
}

// ParseConfig parses a YAML config.
func ParseConfig(buf []byte) (*Config, error) {
	config := Config{Thread: 1}
	if err := yaml.Unmarshal(buf, &config); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	return &config, nil
}

// CodeBytes returns the decoded code. Whitespace in the hex is ignored.
func (c *Config) CodeBytes() ([]byte, error) {
	return decodeHex(c.Code)
}

// Apply initializes ctx from the config. Concrete values are set first so
// that symbolic variables capture them.
func (c *Config) Apply(ctx *taintlift.Context) error {
	for name, value := range c.Registers {
		reg, ok := taintlift.LookupReg(name)
		if !ok {
			return errors.Errorf("unknown register: %q", name)
		}
		ctx.SetRegValue(reg, value)
	}
	if _, ok := c.Registers["rip"]; !ok {
		ctx.SetRegValue(taintlift.RIP, c.Base)
	}

	for name, value := range c.Flags {
		f, ok := taintlift.LookupFlag(name)
		if !ok {
			return errors.Errorf("unknown flag: %q", name)
		}
		ctx.SetFlagValue(f, value)
	}

	code, err := c.CodeBytes()
	if err != nil {
		return err
	}
	ctx.SetMemBytes(c.Base, code)

	for _, m := range c.Memory {
		b, err := decodeHex(m.Bytes)
		if err != nil {
			return errors.Wrapf(err, "memory at %#x", m.Address)
		}
		ctx.SetMemBytes(m.Address, b)
	}

	for _, name := range c.Symbolic.Registers {
		reg, ok := taintlift.LookupReg(name)
		if !ok {
			return errors.Errorf("unknown symbolic register: %q", name)
		}
		ctx.ConvertRegToSymVar(reg, name)
	}
	for _, m := range c.Symbolic.Memory {
		if m.Size == 0 || m.Size > 8 {
			return errors.Errorf("invalid symbolic memory size at %#x: %d", m.Address, m.Size)
		}
		mem := taintlift.Mem(m.Address, m.Size)
		ctx.ConvertMemToSymVar(mem, mem.String())
	}

	for _, name := range c.Taint.Registers {
		reg, ok := taintlift.LookupReg(name)
		if !ok {
			return errors.Errorf("unknown tainted register: %q", name)
		}
		ctx.SetTaint(taintlift.RegOperand{Reg: reg}, true)
	}
	for _, m := range c.Taint.Memory {
		if m.Size == 0 {
			return errors.Errorf("invalid tainted memory size at %#x", m.Address)
		}
		ctx.SetTaint(taintlift.Mem(m.Address, m.Size), true)
	}
	return nil
}

func decodeHex(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode hex")
	}
	return b, nil
}
