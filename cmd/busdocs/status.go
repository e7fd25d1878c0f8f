package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/busdocs/internal/fleet"
	"github.com/dharsanguruparan/busdocs/internal/repository"
)

func newStatusCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Inspect recorded document status",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show <ppu>",
		Short: "Show the document status of a bus",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.db(ctx)
			if err != nil {
				return err
			}
			directory := fleet.NewDirectory(repository.NewBusRepository(db), a.cfg.SearchLimit, a.logger)
			bus, err := directory.Lookup(ctx, args[0])
			if err != nil {
				return err
			}
			sheet, err := fleet.NewStatusBook(repository.NewStatusRepository(db)).Fetch(ctx, bus.ID)
			if err != nil {
				return err
			}
			targets, err := fleet.NewFileRegistry(repository.NewFileRepository(db), nil, nil, fleet.FileRegistryOptions{Logger: a.logger}).PrintTargets(ctx, *bus)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Bus %s · número interno %s\n\n", bus.PPU, bus.NumeroInterno)
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DOCUMENTO\tESTADO\tARCHIVO")
			for _, t := range targets {
				archivo := "—"
				if t.Archivo != nil {
					archivo = t.Archivo.FileName()
					if !t.Archivo.Activo {
						archivo += " (inactivo)"
					}
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Nombre, sheet.Estados[t.TipoDocumento].Label(), archivo)
			}
			return tw.Flush()
		},
	})
	return cmd
}
