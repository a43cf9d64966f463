package types

// Client -> Server message types. Every message is a JSON object with a
// "type" field; the remaining fields depend on the type.
//
//	join              real_name, avatar?, as_host?, token? (host token, required with as_host)
//	resume            team_id, secret
//	sync              (answered with a snapshot)
//	confirm_host | open_categories | start_quiz | retry_generation | next_question
//	end_break | next_category | retry_draw | start_performance | next_turn | finish
//	toggle_category   category_id
//	update_settings   tts_enabled?, show_answers?
//	set_faction       faction ("A" | "B" | "")
//	reset_scores
//	submit_answer     question_index, option
//	finish_quiz       skip_bingo?
//	select_cell       cell
//	buzz
//	judge             correct
//	react | quick_message   text
const (
	ClientJoin             = "join"
	ClientResume           = "resume"
	ClientSync             = "sync"
	ClientConfirmHost      = "confirm_host"
	ClientSetFaction       = "set_faction"
	ClientResetScores      = "reset_scores"
	ClientUpdateSettings   = "update_settings"
	ClientOpenCategories   = "open_categories"
	ClientToggleCategory   = "toggle_category"
	ClientStartQuiz        = "start_quiz"
	ClientRetryGeneration  = "retry_generation"
	ClientSubmitAnswer     = "submit_answer"
	ClientNextQuestion     = "next_question"
	ClientEndBreak         = "end_break"
	ClientNextCategory     = "next_category"
	ClientFinishQuiz       = "finish_quiz"
	ClientSelectCell       = "select_cell"
	ClientRetryDraw        = "retry_draw"
	ClientStartPerformance = "start_performance"
	ClientBuzz             = "buzz"
	ClientJudge            = "judge"
	ClientNextTurn         = "next_turn"
	ClientFinish           = "finish"
	ClientReact            = "react"
	ClientQuickMessage     = "quick_message"
)

// Server -> Client message types.
//
//	joined        team_id, secret (store both to resume after a reconnect)
//	snapshot      version, state
//	event         version, event, state? (state rides on the last event of a batch)
//	speech_ready  question_index, audio (base64 mp3, host only)
//	error         kind, error
const (
	ServerJoined      = "joined"
	ServerSnapshot    = "snapshot"
	ServerEvent       = "event"
	ServerSpeechReady = "speech_ready"
	ServerError       = "error"
)
