package main

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/practicas-ubb/practicas/core"
	"github.com/practicas-ubb/practicas/core/application"
	"github.com/practicas-ubb/practicas/core/offer"
	"github.com/practicas-ubb/practicas/core/practice"
	"github.com/practicas-ubb/practicas/core/user"
)

const (
	seedCoordEmail   = "admin@uni.cl"
	seedCoordPwd     = "Admin123"
	seedStudentEmail = "alumno@uni.cl"
	seedStudentPwd   = "123456"
)

// seed loads a coordinator, a student with pending requests, an evaluator, two offers and an open practice.
// It does nothing when the demo coordinator already exists.
func (cli *commandLine) seed() error {
	ctx := context.Background()

	if _, err := cli.usrRepo.GetUser(ctx, user.GetFilter{Email: seedCoordEmail}); err == nil {
		logger.Println("demo data already loaded")
		return nil
	} else if !core.IsNotFound(err) {
		return err
	}

	now := core.Now()
	day := func(offset int) time.Time {
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, offset)
	}

	err := cli.tx.InTx(ctx, func(exec core.DBExecutor) error {
		coord := user.User{Name: "Coordinador Prácticas", Email: seedCoordEmail, Role: user.RoleCoordination, Enabled: true, CreatedAt: now, UpdatedAt: now}
		if err := coord.SetPassword(seedCoordPwd); err != nil {
			return err
		}
		if _, err := cli.usrRepo.CreateUser(ctx, coord, exec); err != nil {
			return err
		}

		stUsr := user.User{Name: "Alumno Prueba", Email: seedStudentEmail, Role: user.RoleStudent, Enabled: true, CreatedAt: now, UpdatedAt: now}
		if err := stUsr.SetPassword(seedStudentPwd); err != nil {
			return err
		}
		stUsr, err := cli.usrRepo.CreateUser(ctx, stUsr, exec)
		if err != nil {
			return err
		}
		st, err := cli.usrRepo.CreateStudent(ctx, user.Student{
			UserID:    stUsr.ID,
			Rut:       core.CleanRut("21.783.667-0"),
			Career:    "Ing. Informática",
			CreatedAt: now,
		}, exec)
		if err != nil {
			return err
		}

		ev, err := cli.practiceRepo.CreateEvaluator(ctx, practice.Evaluator{Name: "Docente Evaluador", Email: "docente@ubb.cl", CreatedAt: now}, exec)
		if err != nil {
			return err
		}

		for _, o := range []offer.Offer{
			{
				Title:    "Práctica Desarrollador Frontend",
				Company:  "TechNova SpA",
				Details:  "Apoyo en desarrollo web, mantención de equipos y soporte a usuarios internos.",
				Deadline: null.TimeFrom(day(60)),
			},
			{
				Title:    "Práctica Desarrollador Web",
				Company:  "Empresa Demo",
				Details:  "Stack JS, modalidad híbrida.",
				Deadline: null.TimeFrom(day(60)),
			},
		} {
			o.Location, o.Hours, o.Modality = "Concepción", 320, "Híbrida"
			o.IsActive = true
			o.CreatedAt, o.UpdatedAt = now, now
			if o, err = cli.offerRepo.CreateOffer(ctx, o, exec); err != nil {
				return err
			}
			_, err = cli.appRepo.CreateApplication(ctx, application.Application{
				StudentID: st.ID,
				OfferID:   o.ID,
				Status:    application.StatusPending,
				CreatedAt: now,
				UpdatedAt: now,
			}, exec)
			if err != nil {
				return err
			}
		}

		start, end := day(30), day(150)
		_, err = cli.appRepo.CreateRequest(ctx, application.PracticeRequest{
			StudentID:   st.ID,
			CompanyName: "Innovatech Solutions Ltda.",
			TutorName:   "Carlos Muñoz",
			TutorEmail:  "carlos.munoz@innovatech.cl",
			StartDate:   start,
			EndDate:     end,
			Details:     "Desarrollo de soluciones internas para el área TI.",
			Status:      application.StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, exec)
		if err != nil {
			return err
		}

		_, err = cli.practiceRepo.CreatePractice(ctx, practice.Practice{
			StudentID:   st.ID,
			Kind:        practice.KindExternal,
			Company:     "Innovatech Solutions Ltda.",
			StartDate:   null.TimeFrom(start),
			EndDate:     null.TimeFrom(end),
			Hours:       null.IntFrom(320),
			Status:      practice.StatusOpen,
			EvaluatorID: null.Int64From(ev.ID),
			CreatedAt:   now,
			UpdatedAt:   now,
		}, exec)
		return err
	})
	if err != nil {
		return err
	}

	logger.Println("demo data loaded:")
	logger.Printf("- coordination: %s / %s\n", seedCoordEmail, seedCoordPwd)
	logger.Printf("- student: %s / %s\n", seedStudentEmail, seedStudentPwd)
	return nil
}
