package tuple

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/dTS/lib/tuple"
	"github.com/spf13/cobra"
)

var (
	outCmd = &cobra.Command{
		Use:   "out [tuple]",
		Short: "Inserts a tuple",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tuple.Parse(args[0], dimension)
			if err != nil {
				return err
			}
			if err := rpcTupleSpace.Out(cmd.Context(), t); err != nil {
				return err
			}
			fmt.Println("out successfully")
			return nil
		},
	}
	inCmd = &cobra.Command{
		Use:   "in [template]",
		Short: "Removes and prints one tuple matching the template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd.Context(), args[0], rpcTupleSpace.In)
		},
	}
	inAllCmd = &cobra.Command{
		Use:   "in-all [template]",
		Short: "Removes and prints every tuple matching the template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAll(cmd.Context(), args[0], rpcTupleSpace.InAll)
		},
	}
	copyCmd = &cobra.Command{
		Use:   "copy [template]",
		Short: "Prints one tuple matching the template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOne(cmd.Context(), args[0], rpcTupleSpace.Copy)
		},
	}
	copyAllCmd = &cobra.Command{
		Use:   "copy-all [template]",
		Short: "Prints every tuple matching the template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAll(cmd.Context(), args[0], rpcTupleSpace.CopyAll)
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size",
		Short: "Prints the number of stored tuples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := rpcTupleSpace.Size(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("size=%d\n", n)
			return nil
		},
	}
)

func runOne(ctx context.Context, text string, op func(context.Context, *tuple.Tuple) (*tuple.Tuple, error)) error {
	template, err := tuple.Parse(text, dimension)
	if err != nil {
		return err
	}
	t, err := op(ctx, template)
	if err != nil {
		return err
	}
	if t == nil {
		fmt.Println("found=false")
		return nil
	}
	fmt.Printf("found=true, tuple=%s\n", t)
	return nil
}

func runAll(ctx context.Context, text string, op func(context.Context, *tuple.Tuple) ([]*tuple.Tuple, error)) error {
	template, err := tuple.Parse(text, dimension)
	if err != nil {
		return err
	}
	tuples, err := op(ctx, template)
	if err != nil {
		return err
	}
	for _, t := range tuples {
		fmt.Println(t)
	}
	fmt.Printf("count=%d\n", len(tuples))
	return nil
}
