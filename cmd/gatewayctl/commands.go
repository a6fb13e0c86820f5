package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"stream-gateway/internal/client"
	"stream-gateway/internal/gateway"

	"github.com/spf13/cobra"
)

type clientFactory func() (*client.Client, error)

func newRegisterCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "register <user_id> <bitrate>",
		Short: "Create or replace a user session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bitrate, err := parseBitrate(args[1])
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			us, err := c.RegisterUser(cmd.Context(), gateway.UserID(args[0]), bitrate)
			if err != nil {
				return err
			}
			return printJSON(cmd, us)
		},
	}
}

func newBitrateCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "bitrate <user_id> <bitrate>",
		Short: "Change the bitrate of an existing session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			bitrate, err := parseBitrate(args[1])
			if err != nil {
				return err
			}
			c, err := newClient()
			if err != nil {
				return err
			}
			us, err := c.UpdateBitrate(cmd.Context(), gateway.UserID(args[0]), bitrate)
			if err != nil {
				return err
			}
			return printJSON(cmd, us)
		},
	}
}

func newSessionCmd(newClient clientFactory) *cobra.Command {
	var remove bool
	cmd := &cobra.Command{
		Use:   "session <user_id>",
		Short: "Show, or with --remove delete, a user session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			id := gateway.UserID(args[0])
			if remove {
				if err := c.RemoveUser(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "session %s removed\n", id)
				return nil
			}
			us, err := c.GetSession(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, us)
		},
	}
	cmd.Flags().BoolVar(&remove, "remove", false, "delete the session")
	return cmd
}

func newStreamCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "stream <user_id> <video_id>",
		Short: "Request a stream decision",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			res, err := c.Stream(cmd.Context(), gateway.UserID(args[0]), gateway.VideoID(args[1]))
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func newVideoCmd(newClient clientFactory) *cobra.Command {
	var (
		playlist bool
		userID   string
	)
	cmd := &cobra.Command{
		Use:   "video <video_id>",
		Short: "Show a catalog entry, or with --playlist its HLS master playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}
			id := gateway.VideoID(args[0])
			if playlist {
				pl, err := c.MasterPlaylist(cmd.Context(), id, gateway.UserID(userID))
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), pl)
				return nil
			}
			v, err := c.GetVideo(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, v)
		},
	}
	cmd.Flags().BoolVar(&playlist, "playlist", false, "print the master playlist")
	cmd.Flags().StringVar(&userID, "user", "", "list this user's rendition first (with --playlist)")
	return cmd
}

func parseBitrate(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bitrate must be a non-negative integer, got %q", s)
	}
	return n, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
