package service

import (
	"fmt"
	"strings"

	"vocalsilence/internal/model"
)

func buildScreeningPrompt(message string) string {
	return fmt.Sprintf(`Analise esta mensagem e identifique possíveis riscos de segurança em saúde mental.

Mensagem: %q

Categorias de risco:
1. suicide: menções a suicídio, automutilação, desistir de viver
2. violence: ameaças de violência contra outros, homicídio
3. substance: abuso de substâncias, overdose, dependência química
4. psychosis: sinais de psicose, alucinações, delírios, paranoia
5. help_request: pedidos de ajuda, contatos de emergência, menções a se sentir mal e precisar de apoio
6. none: nenhum risco detectado

IMPORTANTE:
- "Estou me sentindo mal" + pedido de ajuda/contato = help_request
- "Preciso de ajuda" ou "tem contato de alguém" = help_request
- Qualquer pedido de contato ou ajuda profissional = help_request

Responda EXATAMENTE neste formato JSON:
{
  "has_risk": true/false,
  "type": "suicide" | "violence" | "substance" | "psychosis" | "help_request" | "none",
  "confidence": 0.0 a 1.0,
  "reasoning": "breve explicação em português"
}

Seja conservador: na dúvida, marque como risco.`, message)
}

func buildDetailedPrompt(message string, screening *model.ScreeningResult) string {
	riskType := screening.Type
	if riskType == "" {
		riskType = model.CrisisTypeUnknown
	}
	reasoning := screening.Reasoning
	if reasoning == "" {
		reasoning = "N/A"
	}
	return fmt.Sprintf(`Você é um especialista em saúde mental analisando uma mensagem de risco.

Mensagem do usuário: %q

Avaliação inicial indicou possível risco de: %s
Razão: %s

Faça uma análise DETALHADA e responda em JSON:
{
  "is_emergency": true/false,
  "type": "%s" ou outro tipo se mais apropriado,
  "severity": "low" | "medium" | "high" | "critical",
  "confidence": 0.0 a 1.0,
  "detailed_analysis": "análise detalhada em português",
  "recommended_action": "ação recomendada",
  "initial_safety_score": 0-10 (10 = seguro)
}

Considere a gravidade e a iminência do risco, o contexto da mensagem e a necessidade de intervenção imediata.`,
		message, riskType, reasoning, riskType)
}

func buildIntentPrompt(message string, q *model.Question, ac AttemptContext, skipCap int) string {
	required := "OPCIONAL - pode ser pulada"
	if ac.Required {
		required = "OBRIGATÓRIA - não pode ser pulada"
	}
	options := ""
	if len(q.Options) > 0 {
		options = fmt.Sprintf("Opções: %s\n", strings.Join(q.Options, " | "))
	}

	return fmt.Sprintf(`Você está auxiliando no questionário psicossocial da Vocal Silence.

A Vocal Silence tem a missão de tornar o cuidado com a saúde mental um direito acessível, utilizando inteligência artificial para fortalecer a autonomia e o autoconhecimento individual e coletivo.

SOBRE O QUESTIONÁRIO:
- Objetivo: melhorar a saúde mental dos colaboradores da empresa
- Respostas são anônimas e confidenciais
- Pode haver perguntas adicionais se identificarmos algum risco
- Perguntas opcionais podem ser puladas (máximo %d)

CONTEXTO DA PERGUNTA ATUAL:
Pergunta ID %s: %q
Tipo: %s
%sEsta pergunta é: %s
Perguntas já puladas: %d/%d
Esclarecimentos já fornecidos nesta pergunta: %d

Mensagem do usuário: %q

Determine a intenção do usuário:
1. "question": pergunta sobre o questionário ou pedido de esclarecimento
2. "answer": tentativa de responder a pergunta atual
3. "skip_request": quer pular ou não responder a pergunta
4. "off_topic": assunto não relacionado ao questionário

REGRAS:
- "pular", "próxima", "passar", "skip", "prefiro não responder", "não sei", "-", "n/a" = skip_request
- "não sei" sobre um TERMO (ex: "não sei o que é CLT") = question
- "o que é CLT?", "quantas perguntas faltam?", "quem aplica este questionário?", "não entendi" = question
- Perguntas sobre quem conduz o questionário NUNCA são respostas
- "CLT" ou "acho que é CLT" = answer
- "qual o clima hoje?" = off_topic
- Use tom empático e acolhedor nas respostas de esclarecimento

Responda APENAS em JSON:
{
  "intent": "question" | "answer" | "skip_request" | "off_topic",
  "confidence": 0.0-1.0,
  "wants_to_skip": true/false,
  "clarification_response": "resposta empática e clara se for pergunta válida (máximo 3 linhas)",
  "should_insist": true/false (true se já forneceu 2+ esclarecimentos),
  "reasoning": "explicação breve da decisão"
}`,
		skipCap, q.ID, q.Text, q.Type, options, required, ac.Skipped, skipCap, ac.Clarifications, message)
}

func buildLikertInterpretPrompt(message string, q *model.Question) string {
	return fmt.Sprintf(`O usuário respondeu: %q
Para uma pergunta Likert (escala 1-5) sobre: %q

Interprete a resposta considerando:
1 = Discordo totalmente
2 = Discordo
3 = Neutro
4 = Concordo
5 = Concordo totalmente

Exemplos:
- "mais ou menos" = 3
- "sim" ou "concordo" = 4
- "com certeza" ou "totalmente" = 5
- "não" ou "discordo" = 2
- "de jeito nenhum" = 1

Se possível interpretar com alta confiança, retorne em JSON:
{"value": 1-5, "confidence": 0.0-1.0}
Se não for possível interpretar claramente, retorne em JSON:
{"value": null, "confidence": 0}`, message, q.Text)
}

func buildChoiceInterpretPrompt(message string, q *model.Question) string {
	return fmt.Sprintf(`O usuário respondeu: %q
Para a pergunta: %q
Opções disponíveis: %s

Identifique qual opção o usuário escolheu, considerando abreviações, sinônimos e respostas parciais.
Exemplo: com opções ["CLT", "PJ", "Estagiário"] a resposta "sou CLT" é "CLT".

Se possível interpretar com alta confiança, retorne em JSON:
{"value": "opção exata da lista", "confidence": 0.0-1.0}
Se não for possível interpretar claramente, retorne em JSON:
{"value": null, "confidence": 0}`, message, q.Text, strings.Join(q.Options, " | "))
}

var crisisProtocols = map[string]string{
	model.RiskSuicide: `⚠️ Sinto muito pelo que você está vivendo. Sua vida é valiosa.
👉 Se você está em perigo imediato, ligue 190.
👉 Você também pode ligar agora para o 188 (CVV – Centro de Valorização da Vida). É gratuito, sigiloso e funciona 24h.
👉 Se puder, procure também o RH ou o canal de apoio da sua empresa, que pode indicar ajuda próxima.
👉 Se quiser, você pode compartilhar como acredita que a empresa pode ajudar nessa situação. Podemos fazer sua voz ser registrada de forma segura.
A Vocal Silence não substitui serviços médicos ou de emergência. Procure ajuda especializada sempre que precisar.`,
	model.RiskViolence: `⚠️ Entendemos a seriedade do que você compartilhou.
Se você está em risco ou pensa em machucar alguém, é muito importante buscar ajuda imediata.
👉 Em situações de sofrimento intenso, você também pode ligar para o 188 (CVV – Centro de Valorização da Vida), disponível 24 horas por dia, gratuitamente.
👉 Além disso, você pode procurar o RH ou o canal de apoio da sua empresa, que poderá orientar sobre medidas de proteção e acolhimento.
👉 Se quiser, você pode compartilhar como acredita que a empresa pode ajudar nessa situação. Podemos fazer sua voz ser registrada de forma segura.
A Vocal Silence não substitui serviços médicos ou de emergência. Procure ajuda especializada sempre que precisar.`,
	model.RiskSubstance: `⚠️ Obrigado por compartilhar algo tão sensível.
Sabemos que o uso de substâncias pode ser difícil de lidar e não estamos aqui para julgar, mas para ouvir.
👉 Se quiser, você pode compartilhar como acredita que a empresa pode ajudar nessa situação. Podemos fazer sua voz ser registrada de forma segura.
👉 Se você sente que precisa de apoio, pode procurar serviços especializados como o CAPS AD (Centro de Atenção Psicossocial Álcool e Drogas) na sua região, ou grupos de apoio como AA e NA.
👉 O processo de mudança é desafiador, e recaídas fazem parte da recuperação. Não significam fracasso.
A Vocal Silence não substitui acompanhamento médico ou terapêutico. Procure ajuda especializada sempre que precisar.`,
	model.RiskPsychosis: `⚠️ Obrigado por compartilhar sua experiência.
Percebemos que você pode estar passando por um momento delicado e é muito importante procurar ajuda profissional o quanto antes.
👉 Se houver risco imediato para você ou para outras pessoas, ligue 190.
👉 Também é fundamental buscar atendimento médico ou em um CAPS (Centro de Atenção Psicossocial) na sua região.
👉 Se sentir confortável, você pode compartilhar como a empresa pode apoiar nesse contexto. Podemos registrar sua voz de forma segura.
A Vocal Silence não substitui acompanhamento médico ou terapêutico, mas reforçamos a importância de procurar ajuda especializada.`,
	model.RiskHelpRequest: `⚠️ Percebo que você está passando por um momento difícil e precisa de ajuda.
👉 Você pode ligar para o 188 (CVV – Centro de Valorização da Vida). É gratuito, sigiloso e funciona 24h.
👉 Em emergências, ligue 190 ou 192 (SAMU).
👉 Se puder, procure também o RH ou o canal de apoio da sua empresa.
👉 Como você está se sentindo agora? Estou aqui para ouvir e apoiar você.
A Vocal Silence não substitui serviços médicos ou de emergência, mas estamos aqui para acolher você neste momento.`,
}

func crisisProtocol(crisisType string) string {
	if p, ok := crisisProtocols[crisisType]; ok {
		return p
	}
	return crisisProtocols[model.RiskHelpRequest]
}

func formatCrisisHistory(turns []model.CrisisTurn) string {
	if len(turns) == 0 {
		return "Início da conversa de suporte"
	}
	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		role := "Assistente"
		if t.Role == "user" {
			role = "Usuário"
		}
		lines = append(lines, role+": "+t.Text)
	}
	return strings.Join(lines, "\n")
}

func buildCrisisPrompt(ep *model.CrisisEpisode, window int) string {
	return fmt.Sprintf(`Você é um assistente de saúde mental treinado, conduzindo uma conversa de suporte durante uma crise.

CONTEXTO DA CRISE:
- Tipo de risco detectado: %s
- Número de interações até agora: %d
- Score de segurança atual (0-10, onde 10 é seguro): %.1f

HISTÓRICO RECENTE DA CONVERSA:
%s

PROTOCOLO PARA %s:
%s

SUAS RESPONSABILIDADES:
1. A conversa deve ser empática e não-julgamental
2. Avaliar continuamente o estado emocional do usuário
3. Oferecer recursos de emergência quando apropriado (sem ser repetitivo)
4. Conduzir a conversa até que o usuário esteja estabilizado
5. NUNCA minimizar os sentimentos do usuário
6. SEMPRE validar as emoções antes de oferecer soluções

RETOMADA DO QUESTIONÁRIO:
Se o usuário disser que está melhor, que já passou ou que quer continuar o questionário,
e você avaliar que ele está minimamente estável, escreva uma mensagem de acolhimento e
marque "resume_questionnaire": true. Se o usuário INSISTIR em continuar, permita.
Na dúvida, continue a conversa de apoio com "resume_questionnaire": false.

Mantenha um tom caloroso, humano e acolhedor, com linguagem simples, em português brasileiro.

Responda APENAS em JSON:
{"reply": "sua resposta ao usuário", "resume_questionnaire": true/false}`,
		ep.Type, ep.InteractionCount, ep.SafetyScore,
		formatCrisisHistory(ep.Recent(window)),
		strings.ToUpper(ep.Type), crisisProtocol(ep.Type))
}
