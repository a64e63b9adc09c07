package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/fieldvisit/internal/client/models"
	"github.com/dmitrijs2005/fieldvisit/internal/client/services"
)

// Visits lists recent visits, newest first, optionally for one day.
func (a *App) Visits(ctx context.Context, args []string) error {
	var day *time.Time
	if len(args) > 0 {
		d, err := parseDay(args[0])
		if err != nil {
			return err
		}
		day = &d
	}

	visits, err := a.visits.Recent(ctx, day)
	if err != nil {
		return err
	}
	if len(visits) == 0 {
		fmt.Fprintln(a.out, "No visits")
		return nil
	}
	for _, v := range visits {
		in, out := v.CheckinTime.Local(), v.CheckoutTime.Local()
		fmt.Fprintf(a.out, "%s  %s-%s  %-20s %s\n",
			in.Format(dayLayout), in.Format("15:04"), out.Format("15:04"), v.ProviderName, v.GPSLocation)
	}
	return nil
}

func (a *App) Locations(ctx context.Context) error {
	locs, err := a.visits.Locations(ctx)
	if err != nil {
		return err
	}
	for _, l := range locs {
		fmt.Fprintf(a.out, "%4d  %s\n", l.ID, l.Name)
	}
	return nil
}

// Providers lists the providers at a location and remembers them for start.
func (a *App) Providers(ctx context.Context, args []string) error {
	location := strings.Join(args, " ")
	if location == "" {
		return fmt.Errorf("%w: providers <location>", errUsage)
	}

	providers, err := a.visits.ProvidersAt(ctx, location)
	if err != nil {
		return err
	}
	a.providers = providers
	if len(providers) == 0 {
		fmt.Fprintf(a.out, "No providers at %s\n", location)
		return nil
	}
	for _, p := range providers {
		fmt.Fprintf(a.out, "%6d  %s\n", p.ProviderID, p.DisplayName())
	}
	return nil
}

func (a *App) Start(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: start <providerId>", errUsage)
	}
	providerID, err := parseID(args[0])
	if err != nil {
		return err
	}

	var provider *models.Provider
	for i := range a.providers {
		if a.providers[i].ProviderID == providerID {
			provider = &a.providers[i]
			break
		}
	}
	if provider == nil {
		return fmt.Errorf("provider %d not listed; run 'providers <location>' first", providerID)
	}

	st, err := a.visits.Start(ctx, *provider)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Visit with %s started at %s\n",
		provider.DisplayName(), st.Visit.CheckinTime.Local().Format("15:04:05"))
	return nil
}

// Stop submits the running visit. Any arguments form the location text.
func (a *App) Stop(ctx context.Context, args []string) error {
	before, err := a.visits.State(ctx)
	if err != nil {
		return err
	}
	if _, err := a.visits.Stop(ctx, strings.Join(args, " ")); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Visit with %s submitted (%s)\n",
		before.Visit.Provider.DisplayName(), before.Elapsed(a.now()).Round(time.Second))
	return nil
}

// Duty toggles duty; words after on/off form the location text.
func (a *App) Duty(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: duty on|off [location]", errUsage)
	}
	gps := strings.Join(args[1:], " ")

	switch args[0] {
	case "on":
		st, err := a.visits.DutyOn(ctx, gps)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "On duty (day tracker %s)\n", st.DayTrackerID)
	case "off":
		if _, err := a.visits.DutyOff(ctx, gps); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Off duty")
	default:
		return fmt.Errorf("%w: duty on|off [location]", errUsage)
	}
	return nil
}

// Image prints the profile image URL of the current identity.
func (a *App) Image(ctx context.Context) error {
	id, ok := a.session.Current()
	if !ok {
		return services.ErrNotLoggedIn
	}
	u, err := a.images.ProfileImageURL(id.ThumbnailURL)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, u)
	return nil
}
