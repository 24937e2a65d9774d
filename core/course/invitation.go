package course

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/edusys/core"
	"github.com/trezcool/edusys/core/user"
)

var ErrInvitationNotFound = core.NewNotFoundError("invitation")

type invitationData struct {
	TeacherName string
	CourseName  string
	Link        string
}

// Invite creates an invitation to join a course taught by caller and emails it to email.
// inv is expected to be validated. The invitation is kept even when the email could not be sent.
func (svc *Service) Invite(ctx context.Context, caller user.User, courseID string, inv NewInvitation) (Invitation, core.Outcome, error) {
	var outcome core.Outcome

	c, err := svc.GetOwned(ctx, caller, courseID)
	if err != nil {
		return Invitation{}, outcome, err
	}

	invitation, err := svc.repo.CreateInvitation(ctx, Invitation{
		ID:        uuid.NewString(),
		Token:     uuid.NewString(),
		Email:     core.CleanString(inv.Email, true /* lower */),
		CourseID:  c.ID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Invitation{}, outcome, err
	}

	msg := core.NewEmailMessage(
		mail.Address{Address: invitation.Email},
		fmt.Sprintf("Invitation to join the course: %s", c.Name()),
		"invitation",
		invitationData{
			TeacherName: caller.Name,
			CourseName:  c.Name(),
			Link:        fmt.Sprintf("%s/accept-invitation/%s/", core.Conf.FrontendBaseURL, invitation.Token),
		},
	)
	if err = svc.mailSvc.SendMessages(msg); err != nil {
		outcome.NotifyErr = core.NewDependencyError("email", err)
	}
	return invitation, outcome, nil
}

// AcceptInvitation enrolls the invited user, creating their account when needed, and consumes the invitation.
// It returns the path of the course page to redirect to.
func (svc *Service) AcceptInvitation(ctx context.Context, token string) (string, core.Outcome, error) {
	var outcome core.Outcome

	token = core.CleanString(token)
	if _, err := uuid.Parse(token); err != nil {
		return "", outcome, ErrInvitationNotFound
	}

	var (
		inv     Invitation
		invitee user.User
		created bool
	)
	err := core.RunInTx(ctx, svc.db, func(exec core.DBExecutor) error {
		var err error
		if inv, err = svc.repo.GetPendingInvitation(ctx, token, exec); err != nil {
			return err
		}
		if invitee, created, err = svc.users.GetOrCreateByEmail(ctx, inv.Email, exec); err != nil {
			return err
		}
		if err = svc.repo.AddStudent(ctx, inv.CourseID, invitee.ID, exec); err != nil {
			return err
		}
		return svc.repo.AcceptInvitation(ctx, inv.ID, exec)
	})
	if err != nil {
		return "", outcome, err
	}

	evt := core.NewEvent(core.EventInvitationAccepted, invitee.ID, map[string]interface{}{
		"course_id":     inv.CourseID,
		"invitation_id": inv.ID,
		"user_created":  created,
	})
	if err = svc.events.Publish(ctx, evt); err != nil {
		outcome.PublishErr = core.NewDependencyError("events", err)
	}
	return fmt.Sprintf("/course/%s", inv.CourseID), outcome, nil
}
