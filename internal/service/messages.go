package service

// Participant-facing texts. The audience is Brazilian, so everything is pt-BR.
const (
	msgWelcome = `👋 Olá! Somos da Vocal Silence e queremos ouvir como você se sente no ambiente de trabalho.

Este é um questionário psicossocial que vai mapear fatores que impactam seu dia a dia e, com isso, oferecer subsídios para que sua empresa construa planos de ação orientados por dados.

🔒 Suas respostas são anônimas e tratadas com sigilo.
⏱️ Em poucos minutos você contribui para mudanças reais.
📌 A participação é voluntária – você pode parar a qualquer momento.
⚕️ Importante: este questionário não é avaliação médica e não fornece diagnóstico.

👉 Podemos começar?`

	msgConsentIntro = "Ótimo! Vamos começar.\n\n" +
		"📊 Algumas perguntas usam uma escala de 1 a 5:\n" +
		"• 1 = Discordo totalmente\n• 5 = Concordo totalmente\n" +
		"Você pode responder com número, emoji ou texto.\n\n"
	msgConsentReprompt = "Por favor, responda 'sim' para começar ou 'não' para cancelar."
	msgConsentDeclined = "Sem problemas! Quando quiser participar, é só enviar uma mensagem. Até logo!"

	msgRestarted = "🔄 Questionário reiniciado. Se quiser começar novamente, é só falar um Olá!"

	msgRequiredNoSkip  = "⚠️ Esta pergunta é obrigatória e não pode ser pulada.\n\nPor favor, responda para continuar:\n"
	msgSkipCapReached  = "❌ Você já pulou o máximo de %d perguntas permitidas. O questionário será reiniciado para garantir dados consistentes. Digite qualquer mensagem para começar novamente."
	msgSkipped         = "✔ Pergunta pulada."
	msgSkipsRemaining  = "\n💡 Você ainda pode pular %d pergunta%s."
	msgSkipsExhausted  = "\n⚠️ Atenção: Você atingiu o limite de perguntas que podem ser puladas. Se ultrapassar o limite, o questionário será reiniciado."
	msgAutoSkipped     = "Vamos pular esta pergunta.\n\n"
	msgTooManySkips    = "Notamos que muitas perguntas foram puladas e, por isso, não é possível continuar. Este questionário ajuda a empresa a compreender melhor o ambiente de trabalho. Vamos reiniciá-lo para que possa ser preenchido corretamente. Digite qualquer mensagem para começar novamente."
	msgInconsistent    = "Notamos que algumas respostas parecem inconsistentes. Este questionário ajuda a empresa a compreender melhor o ambiente de trabalho. Vamos reiniciá-lo, pois não foi preenchido corretamente. Digite qualquer mensagem para começar novamente."
	msgNotUnderstood   = "Não consegui entender sua resposta. Por favor, escolha uma das opções apresentadas."
	msgTryClearer      = "❌ Não consegui entender. Tente responder de forma mais clara.\n\n"
	msgAttemptCounter  = "(Tentativa %d/%d)\n"
	msgClarifyRelay    = "💬 %s\n\n📝 Agora, por favor, responda:\n"
	msgClarifyShort    = "💬 %s\n\n📝 Por favor, responda:\n"
	msgClarifyDefault  = "Vou esclarecer sua dúvida."
	msgClarifyLimit    = "Já forneci esclarecimentos sobre esta pergunta. Por favor, escolha uma das opções apresentadas."
	msgOffTopic        = "Por favor, vamos focar no questionário de saúde ocupacional. Responda a pergunta apresentada."
	msgWarning         = "⚠️ %s\n\n"
	msgInvalidOption   = "❌ Resposta inválida. Por favor, escolha uma das opções:\n"
	msgInvalidLikert   = "❌ Resposta inválida. Por favor, escolha um valor de 1 a 5:\n"
	msgAnswerRecorded  = "✔ Resposta registrada%s.\n\n"
	msgInterpreted     = " (interpretado)"
	msgRecorded        = "✔ Registrado.\n\n"
	msgChooseOption    = "❌ Por favor, escolha uma das opções:\n\n"
	msgFollowupIntro   = "Percebemos alguns sinais de risco nesta etapa. Vamos fazer algumas perguntas de aprofundamento para entender melhor o que está acontecendo."
	msgOriginIntro     = "Vamos fazer algumas outras perguntas para entender melhor a origem destes riscos."
	msgAnswerWith      = "Por favor, responda %s."
	msgAnswerWithAny   = "Por favor, responda com uma das opções apresentadas."
	msgCompletion      = "✨ Questionário concluído! Agradecemos imensamente sua participação e confiança. Suas respostas foram registradas com sucesso e serão tratadas com total confidencialidade. Agora vamos apagar o histórico desta conversa para garantir sua privacidade. Muito obrigado! 🙏"
	msgResumeBase      = "Que bom que você está melhor! 💚\n\n"
	msgResumePhase1    = "Vamos continuar o questionário de onde paramos."
	msgResumeFollowup  = "Vamos continuar com as perguntas de aprofundamento."
	msgResumeOrigin    = "Vamos continuar explorando as origens dos riscos identificados."
	msgResumeGeneric   = "Vamos continuar de onde paramos."
	msgResumeConsent   = "Vamos retomar onde paramos."
	msgResumeRestart   = "Vamos reiniciar o questionário."
	msgCrisisResumed   = "Que bom que você está se sentindo melhor! Vamos retomar o questionário de onde paramos."
	msgCrisisFallback  = "Estou aqui para te apoiar. Como você está se sentindo agora? Lembre-se que há ajuda disponível: CVV 188 (24h) | SAMU 192"
	msgCrisisReminder  = "\n\n📞 Lembre-se: CVV 188 (24h) | SAMU 192"
	msgCrisisLongNote  = "\n\n💡 Nota: Já conversamos bastante (%d mensagens). Se você se sente melhor e quer continuar o questionário, me avise diretamente."
	msgAudioHeard      = "🎤 *Entendi seu áudio:* \"%s\"\n\n"
	msgAudioTooLong    = "⚠️ Áudio muito longo (%ds). Para esta pergunta, envie áudios de até %ds."
	msgAudioFailed     = "❌ Não consegui transcrever o áudio. Por favor, envie uma mensagem de texto ou tente novamente."
	msgAudioError      = "❌ Erro ao processar áudio. Por favor, envie uma mensagem de texto."
	msgResetDuringCris = "Reinicialização solicitada durante crise"

	// GenericErrorReply answers a turn that failed unexpectedly.
	GenericErrorReply = "Desculpe, houve um erro temporário. Pode repetir sua última mensagem?"
)

var (
	consentYes   = []string{"sim", "yes", "ok", "vamos", "pode", "aceito", "concordo"}
	consentNo    = []string{"nao", "não", "no", "depois", "pare"}
	restartWords = []string{"reiniciar", "recomecar", "reset", "restart"}
)
