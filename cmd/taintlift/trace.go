package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/taintlift/taintlift"
	"github.com/taintlift/taintlift/trace"
	"github.com/taintlift/taintlift/x86"
)

// TraceCommand represents a command for translating a code buffer.
type TraceCommand struct {
	ConfigPath string
	Tree       bool
	Simplify   bool
	Dump       bool
	SMT        bool
	JSONLPath  string

	Stdout io.Writer
}

// NewTraceCommand returns a new instance of TraceCommand.
func NewTraceCommand() *TraceCommand {
	return &TraceCommand{Stdout: os.Stdout}
}

// Command returns the cobra command for the "trace" subcommand.
func (cmd *TraceCommand) Command() *cobra.Command {
	c := &cobra.Command{
		Use:   "trace",
		Short: "Translate and print the instructions of a configured run",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			cmd.Stdout = c.OutOrStdout()
			return cmd.Run(c.Context())
		},
	}
	c.Flags().StringVarP(&cmd.ConfigPath, "config", "c", "", "path to YAML run config")
	c.Flags().BoolVar(&cmd.Tree, "tree", false, "print formulas as trees")
	c.Flags().BoolVar(&cmd.Simplify, "simplify", false, "print simplified formulas")
	c.Flags().BoolVar(&cmd.Dump, "dump", false, "dump the final context")
	c.Flags().BoolVar(&cmd.SMT, "smt", false, "print an SMT-LIB2 script of all units")
	c.Flags().StringVar(&cmd.JSONLPath, "jsonl", "", "write instruction records to a JSON Lines file")
	_ = c.MarkFlagRequired("config")
	return c
}

// Run executes the "trace" subcommand.
func (cmd *TraceCommand) Run(ctx context.Context) error {
	config, err := ReadConfig(cmd.ConfigPath)
	if err != nil {
		return err
	}
	code, err := config.CodeBytes()
	if err != nil {
		return err
	}

	tctx := taintlift.NewContext(config.Thread)
	tctx.Interner = taintlift.NewInterner()
	if err := config.Apply(tctx); err != nil {
		return err
	}

	var w *trace.Writer
	if cmd.JSONLPath != "" {
		if w, err = trace.Create(cmd.JSONLPath); err != nil {
			return err
		}
		defer w.Close()
	}

	var units []*taintlift.SymbolicExpression
	tr := taintlift.NewTranslator()
	end := config.Base + uint64(len(code))
	for step := 0; config.MaxSteps == 0 || step < config.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		pc := tctx.RegValue(taintlift.RIP)
		if pc < config.Base || pc >= end {
			log.Debugf("[trace] %#x: outside code, stopping", pc)
			break
		}

		insn, err := x86.Decode(code[pc-config.Base:], pc, tctx)
		var operr *x86.OperandError
		if errors.As(err, &operr) && config.SkipUnsupported {
			log.Warnf("[trace] skip: %s", err)
			tctx.SetRegValue(taintlift.RIP, pc+uint64(operr.Len))
			tctx.ConcretizeReg(taintlift.RIP)
			continue
		} else if err != nil {
			return err
		}

		inst, err := tr.Translate(tctx, insn)
		if isUnsupported(err) && config.SkipUnsupported {
			log.Warnf("[trace] skip: %s", err)
			tctx.SetRegValue(taintlift.RIP, insn.Next())
			tctx.ConcretizeReg(taintlift.RIP)
			continue
		} else if err != nil {
			return err
		}

		if err := cmd.print(inst); err != nil {
			return err
		}
		if w != nil {
			if err := w.Write(inst); err != nil {
				return err
			}
		}
		units = append(units, inst.Exprs...)
	}

	if cmd.SMT {
		fmt.Fprintln(cmd.Stdout, taintlift.Script(units...))
	}
	if cmd.Dump {
		spew.Fdump(cmd.Stdout, tctx.Stats())
		fmt.Fprint(cmd.Stdout, tctx.Dump())
	}
	if w != nil {
		return w.Close()
	}
	return nil
}

func isUnsupported(err error) bool {
	return errors.Is(err, taintlift.ErrUnsupportedOpcode) || errors.Is(err, taintlift.ErrUnsupportedShape)
}

func (cmd *TraceCommand) print(inst *taintlift.Instruction) error {
	if cmd.Tree {
		_, err := fmt.Fprintln(cmd.Stdout, instructionTree(inst, cmd.Simplify).String())
		return err
	}

	fmt.Fprintf(cmd.Stdout, "%#x: %s\n", inst.Address, inst.Disasm)
	for _, u := range inst.Exprs {
		e := u.Expr
		if cmd.Simplify {
			e = taintlift.Simplify(e)
		}
		if u.Comment != "" {
			fmt.Fprintf(cmd.Stdout, "  %s = %s ; %s\n", u.Name(), e, u.Comment)
		} else {
			fmt.Fprintf(cmd.Stdout, "  %s = %s\n", u.Name(), e)
		}
	}
	_, err := fmt.Fprintln(cmd.Stdout)
	return err
}

// instructionTree returns a tree with one branch per unit.
func instructionTree(inst *taintlift.Instruction, simplify bool) treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("%#x: %s", inst.Address, inst.Disasm))
	for _, u := range inst.Exprs {
		e := u.Expr
		if simplify {
			e = taintlift.Simplify(e)
		}
		branch := tree.AddBranch(fmt.Sprintf("%s -> %s = %#x", u.Name(), u.Dest, u.Value))
		addExpr(branch, e)
	}
	return tree
}

// addExpr adds e to tree. References and variables are leaves.
func addExpr(tree treeprint.Tree, e taintlift.Expr) {
	switch e := e.(type) {
	case *taintlift.BinaryExpr:
		b := tree.AddBranch(e.Op.String())
		addExpr(b, e.LHS)
		addExpr(b, e.RHS)
	case *taintlift.CastExpr:
		name := "zext"
		if e.Signed {
			name = "sext"
		}
		addExpr(tree.AddBranch(fmt.Sprintf("%s %d", name, e.Width)), e.Src)
	case *taintlift.ConcatExpr:
		b := tree.AddBranch("concat")
		addExpr(b, e.MSB)
		addExpr(b, e.LSB)
	case *taintlift.ExtractExpr:
		addExpr(tree.AddBranch(fmt.Sprintf("extract %d:%d", e.High, e.Low)), e.Expr)
	case *taintlift.IteExpr:
		b := tree.AddBranch("ite")
		addExpr(b, e.Cond)
		addExpr(b, e.Then)
		addExpr(b, e.Else)
	case *taintlift.NotExpr:
		addExpr(tree.AddBranch("not"), e.Expr)
	default:
		tree.AddNode(e.String())
	}
}
